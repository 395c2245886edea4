package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/knowfox/comet/internal/render"
	"github.com/knowfox/comet/page"
)

var errQuit = errors.New("quit")

func newGetCmd(flags *rootFlags) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "get [url]",
		Short: "Fetch a page and browse from it",
		Long: "Fetch a page and print it. On a terminal, links can then be followed by\n" +
			"number; type a URL to open it or q to quit.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			target := a.prefs.HomeURL
			if len(args) == 1 {
				target = args[0]
			}
			interactive := !once && isatty.IsTerminal(os.Stdin.Fd())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			p := page.New(page.Options{
				Client:      a.client(),
				Credentials: a.provider,
				History:     a.history,
				Logger:      a.logger,
			})
			defer p.Close()

			b := &browser{
				page:        p,
				out:         render.ForFile(os.Stdout),
				in:          bufio.NewReader(os.Stdin),
				downloadDir: a.prefs.DownloadDir,
				interactive: interactive,
			}
			p.Open(target)
			return b.loop(ctx)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "exit after the first page even on a terminal")
	return cmd
}

type browser struct {
	page        *page.Page
	out         *render.Printer
	in          *bufio.Reader
	downloadDir string
	interactive bool
}

func (b *browser) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.page.Cancel()
			return nil
		case lines := <-b.page.Lines():
			if err := b.out.Update(lines.URI, lines.Lines); err != nil {
				return err
			}
		case s := <-b.page.States():
			if s == page.StateConnecting {
				b.out.Message("Connecting to %s", b.page.LoadingURL())
			}
		case ev, ok := <-b.page.Events():
			if !ok {
				return nil
			}
			err := b.handle(ev)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// handle reacts to ev. Terminal events lead to the next prompt, or end the
// session when not interactive.
func (b *browser) handle(ev page.Event) error {
	switch ev := ev.(type) {
	case page.RedirectEvent:
		b.out.Message("Redirected to %s", ev.URI)
		b.page.FollowRedirect(ev)
		return nil
	case page.InputEvent:
		if !b.interactive {
			return fmt.Errorf("%s asks for input: %s", ev.URI, ev.Prompt)
		}
		input, err := b.readInput(ev)
		if err != nil {
			return err
		}
		b.page.SubmitInput(ev, input)
		return nil
	case page.BinaryEvent:
		b.out.Message("Downloading %s (%s)", ev.URI, ev.MimeType.Short())
		b.page.Download(ev, b.downloadDir)
		return nil
	case page.SuccessEvent:
		// Lines published with the success are already drained or pending.
		select {
		case lines := <-b.page.Lines():
			if err := b.out.Update(lines.URI, lines.Lines); err != nil {
				return err
			}
		default:
		}
	case page.DownloadCompletedEvent:
		b.out.Message("Saved %s to %s", ev.URI, ev.Path)
	case page.ExternalEvent:
		b.out.Message("External link, open it with another program: %s", ev.URI)
	case page.FailureEvent:
		b.out.Message("%s: %s", ev.Short, ev.Details)
		if ev.ServerDetails != "" {
			b.out.Message("Server said: %s", ev.ServerDetails)
		}
		if !b.interactive {
			return fmt.Errorf("%s", ev.Short)
		}
	}
	if !b.interactive {
		return errQuit
	}
	return b.prompt()
}

// prompt asks for the next link to open.
func (b *browser) prompt() error {
	fmt.Print("> ")
	line, err := b.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return errQuit
	}
	line = strings.TrimSpace(line)
	switch {
	case line == "" || line == "q":
		return errQuit
	case isLinkNumber(line, len(b.out.Links())):
		n, _ := strconv.Atoi(line)
		b.page.Open(b.out.Links()[n-1])
	default:
		b.page.Open(line)
	}
	return nil
}

func isLinkNumber(s string, count int) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 1 && n <= count
}

func (b *browser) readInput(ev page.InputEvent) (string, error) {
	fmt.Printf("%s: ", ev.Prompt)
	if ev.Sensitive {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		return string(secret), err
	}
	line, err := b.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
