package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var flags struct {
	claudeDir string
	project   string
	db        string
	source    string
	icons     string
	server    string
	debug     string
	session   string
}

var rootCmd = &cobra.Command{
	Use:   "vizzy",
	Short: "Execution-graph viewer for agent sessions",
	Long: "vizzy reconstructs the execution graph of a Claude Code or opencode session " +
		"(turns, tool calls, concurrent sub-agents) and lets you zoom through it live.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runViewer()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.claudeDir, "claude-dir", "", "Claude Code config dir (default: $CLAUDE_CONFIG_DIR or ~/.claude)")
	pf.StringVar(&flags.project, "project", "", "project directory whose Claude Code sessions to read (default: cwd)")
	pf.StringVar(&flags.db, "db", "", "opencode database (default: $XDG_DATA_HOME/opencode/opencode.db)")
	pf.StringVar(&flags.source, "source", "all", "session source: all, claude or opencode")
	pf.StringVar(&flags.server, "server", "", "live opencode server URL (default: $OPENCODE_SERVER)")
	pf.StringVar(&flags.debug, "debug", "", "write debug log to this file")
	rootCmd.Flags().StringVar(&flags.icons, "icons", "", "tool icon rule file (default: $VIZZY_ICONS or ~/.config/vizzy/icons.yaml)")
	rootCmd.Flags().StringVarP(&flags.session, "session", "s", "", "session to open (default: most recent)")

	rootCmd.AddCommand(newSessionsCmd(), newGraphCmd(), newServeCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vizzy: %v\n", err)
		os.Exit(1)
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// -- wiring --

func orDefault(v string, def func() string) string {
	if v != "" {
		return v
	}
	return def()
}

// buildSource assembles the sources selected by --source.
func buildSource() (*multiSource, error) {
	kind := flags.source
	if kind != "all" && kind != string(sourceClaude) && kind != string(sourceOpencode) {
		return nil, fmt.Errorf("%w: %q (want all, claude or opencode)", errUnknownSource, kind)
	}

	var sources []source
	if kind == "all" || kind == string(sourceClaude) {
		project := flags.project
		if project == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("resolve project: %w", err)
			}
			project = cwd
		}
		sources = append(sources, newClaudeSource(orDefault(flags.claudeDir, claudeDir), project))
	}
	if kind == "all" || kind == string(sourceOpencode) {
		oc := newOpencodeSource(orDefault(flags.db, dbPath))
		server := flags.server
		if server == "" {
			server = os.Getenv("OPENCODE_SERVER")
		}
		if server != "" {
			sources = append(sources, &liveOpencode{opencodeSource: oc, client: newLiveClient(server)})
		} else {
			sources = append(sources, oc)
		}
	}
	return newMultiSource(sources...), nil
}

// setupLogging silences the log unless --debug names a file. returns the
// closer for that file.
func setupLogging() func() {
	if flags.debug == "" {
		log.SetOutput(io.Discard)
		return func() {}
	}
	f, err := tea.LogToFile(flags.debug, "vizzy")
	if err != nil {
		exitErr("open debug log", err)
	}
	return func() { f.Close() }
}

// resolveSessionID accepts a qualified id or a bare native id.
func resolveSessionID(sessions []sessionInfo, id string) (string, bool) {
	for _, s := range sessions {
		if s.id == id {
			return id, true
		}
	}
	for _, s := range sessions {
		if _, native, ok := splitID(s.id); ok && native == id {
			return s.id, true
		}
	}
	return "", false
}

func mustSessions(src *multiSource) []sessionInfo {
	sessions, err := src.listSessions()
	if err != nil {
		exitErr("list sessions", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		os.Exit(1)
	}
	return sessions
}

// -- viewer --

func runViewer() error {
	defer setupLogging()()

	src, err := buildSource()
	if err != nil {
		return err
	}
	sessions := mustSessions(src)

	sessionID := sessions[0].id
	if flags.session != "" {
		id, ok := resolveSessionID(sessions, flags.session)
		if !ok {
			fmt.Fprintf(os.Stderr, "no events found for session %s\n", flags.session)
			os.Exit(1)
		}
		sessionID = id
	}

	icons, err := loadIconRules(orDefault(flags.icons, iconRulesPath))
	if err != nil {
		log.Printf("%v; using default icons", err)
		icons, _ = loadIconRules("")
	}

	// clean exit on SIGTERM/SIGHUP so alt screen gets restored
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigCh
		os.Exit(0)
	}()

	setProcessTitle()

	p := tea.NewProgram(newModel(src, icons, sessionID), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

// setProcessTitle sets tmux window name and xterm title.
func setProcessTitle() {
	fmt.Print("\033kvizzy\033\\")
	fmt.Print("\033]2;vizzy\007")
}

// -- subcommands --

func newSessionsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, newest first (JSON when not on a terminal)",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer setupLogging()()
			src, err := buildSource()
			if err != nil {
				return err
			}
			sessions := mustSessions(src)

			out := cmd.OutOrStdout()
			if asJSON || !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sessionsJSON(sessions))
			}
			writeSessionTable(out, sessions, time.Now().UnixMilli())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "always print JSON")
	return cmd
}

func writeSessionTable(w io.Writer, sessions []sessionInfo, nowMS int64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAGE\tEVENTS\tTITLE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.id, formatAge(s.lastActivity, nowMS), s.eventCount, truncOrPad(firstLine(s.title), 60))
	}
	tw.Flush()
}

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph <session>",
		Short: "Dump a session's execution graph as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer setupLogging()()
			src, err := buildSource()
			if err != nil {
				return err
			}
			id, ok := resolveSessionID(mustSessions(src), args[0])
			if !ok {
				id = args[0]
			}
			g, err := src.readGraph(id)
			if err != nil {
				exitErr("read graph", err)
			}
			if len(g.nodes) == 0 {
				fmt.Fprintf(os.Stderr, "no events found for session %s\n", args[0])
				os.Exit(1)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(graphJSON(id, g))
		},
	}
}

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sessions and graphs as JSON over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer setupLogging()()
			src, err := buildSource()
			if err != nil {
				return err
			}
			return serveCommand(src, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 7878, "listen port")
	return cmd
}
