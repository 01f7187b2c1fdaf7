package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/config"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/gist"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/localstore"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/logging"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type openOptions struct {
	token   string
	shareID string
	rename  string
	save    bool
}

func newOpenCommand() *cobra.Command {
	var options openOptions
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Resolve and load a diagram session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd.Context(), cmd.OutOrStdout(), options)
		},
	}
	cmd.Flags().StringVar(&options.token, "session", "", `Session token such as "d <id>", "t <id>" or "lt <id>"`)
	cmd.Flags().StringVar(&options.shareID, "share-id", "", "Gist identifier to import")
	cmd.Flags().StringVar(&options.rename, "rename", "", "Rename the loaded diagram")
	cmd.Flags().BoolVar(&options.save, "save", false, "Save the session after loading")
	return cmd
}

func runOpen(ctx context.Context, out io.Writer, options openOptions) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewConsoleLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	local, err := localstore.Open(appConfig.LocalPath)
	if err != nil {
		return err
	}
	defer local.Close()

	remote, err := newRemoteClient(appConfig, logger)
	if err != nil {
		return err
	}

	gistClient, err := gist.NewClient(gist.ClientConfig{
		APIURL:   appConfig.GistAPIURL,
		Token:    appConfig.GistToken,
		FileName: appConfig.GistFileName,
		Timeout:  appConfig.RemoteTimeout,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	controller, err := session.NewController(session.Config{
		Local:       local,
		Remote:      remote,
		Gist:        gistClient,
		Prompter:    &consolePrompter{out: out},
		QueryParams: &shareParam{value: options.shareID},
		IDProvider:  diagrams.NewUUIDProvider(),
		Clock:       time.Now,
		Logger:      logger,
		Token:       options.token,
	})
	if err != nil {
		return err
	}

	outcome := controller.ResolveAndLoad(ctx)
	if options.rename != "" && outcome == session.OutcomeLoaded {
		controller.SetName(options.rename)
	}

	switch {
	case options.save:
		result := controller.Save(ctx)
		fmt.Fprintf(out, "save: %s\n", result)
	case appConfig.AutosaveEnabled && controller.Dirty() && !controller.Working().Empty():
		state := awaitAutosave(ctx, controller, appConfig, logger)
		fmt.Fprintf(out, "autosave: %s\n", state)
	}

	return printSession(out, controller, outcome)
}

// awaitAutosave runs the autosaver until the pending edit settles or the
// remote retry budget is exhausted.
func awaitAutosave(ctx context.Context, controller *session.Controller, appConfig config.AppConfig, logger *zap.Logger) session.SaveState {
	settled := make(chan session.SaveState, 1)
	controller.OnStateChange(func(state session.SaveState) {
		if state == session.StateSaved || state == session.StateError {
			select {
			case settled <- state:
			default:
			}
		}
	})

	autosaver, err := session.NewAutosaver(session.AutosaverConfig{
		Controller: controller,
		Enabled:    true,
		Debounce:   appConfig.AutosaveDebounce,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("autosave unavailable", zap.Error(err))
		return controller.State()
	}

	budget := appConfig.AutosaveDebounce + time.Duration(appConfig.RemoteRetries)*(appConfig.RemoteTimeout+appConfig.RemoteRetryDelay)
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		autosaver.Run(runCtx)
	}()

	var state session.SaveState
	select {
	case state = <-settled:
	case <-runCtx.Done():
		state = controller.State()
	}
	cancel()
	wg.Wait()
	return state
}

func printSession(out io.Writer, controller *session.Controller, outcome session.LoadOutcome) error {
	working := controller.Working()
	token := controller.Token()
	if token == "" {
		token = "(none)"
	}
	lines := []string{
		fmt.Sprintf("token: %s", token),
		fmt.Sprintf("outcome: %s", outcome),
		fmt.Sprintf("state: %s", controller.State()),
		fmt.Sprintf("name: %s", working.Name),
		fmt.Sprintf("database: %s", diagrams.CapabilitiesOf(working.Database).Name),
		fmt.Sprintf("tables: %d relationships: %d notes: %d areas: %d", len(working.Tables), len(working.Relationships), len(working.Notes), len(working.Areas)),
		fmt.Sprintf("dirty: %t", controller.Dirty()),
	}
	if lastErr := controller.LastError(); lastErr != nil {
		lines = append(lines, fmt.Sprintf("error: %v", lastErr))
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

type consolePrompter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *consolePrompter) PromptForDialect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "no diagram loaded: choose a database dialect to start a new one")
}

func (p *consolePrompter) Notify(notice session.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "notice: %s\n", notice)
}

type shareParam struct {
	mu    sync.Mutex
	value string
}

func (s *shareParam) ShareID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *shareParam) ClearShareID() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
}
