// Command searchctl is an interactive terminal client for the search service.
// Each input line replaces the query; lines starting with ':' are commands.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	pkgjwt "github.com/weiawesome/wes-io-live/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/search-service/internal/client"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

const helpText = `commands:
  :type all|users|posts|conversations
  :sort relevance|date|popularity
  :range all|day|week|month|year
  :verified on|off
  :more     load the next page
  :clear    clear the query
  :quit`

var rootCmd = &cobra.Command{
	Use:   "searchctl",
	Short: "Interactive client for the search service",
	Long: `searchctl reads queries from stdin and searches as you type,
debouncing input the same way the web client does.

` + helpText,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("url", "http://localhost:8094", "search service base URL")
	flags.String("token", "", "bearer token")
	flags.String("jwt-secret", "", "mint a token with this secret instead of --token")
	flags.String("user", "", "user id for a minted token")
	flags.Duration("delay", client.DefaultDelay, "debounce delay")
	flags.Int("limit", domain.DefaultLimit, "page size")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	viper.SetEnvPrefix("searchctl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(flags)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	pkglog.Init(pkglog.Config{
		Level:       viper.GetString("log-level"),
		Pretty:      true,
		ServiceName: "searchctl",
		Output:      cmd.ErrOrStderr(),
	})

	token, err := resolveToken()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	show := func(s client.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		render(out, s)
	}

	ctrl := client.NewController(
		client.NewHTTPTransport(viper.GetString("url"), token),
		client.WithDelay(viper.GetDuration("delay")),
		client.WithListener(show),
	)
	ctrl.SetLimit(viper.GetInt("limit"))

	return loop(cmd.Context(), cmd.InOrStdin(), out, ctrl)
}

func resolveToken() (string, error) {
	if secret := viper.GetString("jwt-secret"); secret != "" {
		user := viper.GetString("user")
		if user == "" {
			return "", fmt.Errorf("--user is required with --jwt-secret")
		}
		manager, err := pkgjwt.NewManager(secret, "wes-io-live", time.Hour)
		if err != nil {
			return "", err
		}
		token, _, err := manager.GenerateAccessToken(user, user)
		return token, err
	}
	token := viper.GetString("token")
	if token == "" {
		return "", fmt.Errorf("a --token or --jwt-secret is required")
	}
	return token, nil
}

func loop(ctx context.Context, in io.Reader, out io.Writer, ctrl *client.Controller) error {
	if ctx == nil {
		ctx = context.Background()
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ":") {
			ctrl.SetQuery(line)
			continue
		}

		fields := strings.Fields(line[1:])
		if len(fields) == 0 {
			continue
		}
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		switch fields[0] {
		case "quit", "q":
			return nil
		case "clear":
			ctrl.SetQuery("")
		case "more":
			if err := ctrl.LoadMore(ctx); err != nil {
				fmt.Fprintln(out, "!", err)
			}
		case "type":
			scope, err := domain.ParseScope(arg)
			if err != nil {
				fmt.Fprintln(out, "!", err)
				continue
			}
			ctrl.SetScope(scope)
		case "sort", "range", "verified":
			f, err := applyFilter(ctrl.Snapshot().Params, fields[0], arg)
			if err != nil {
				fmt.Fprintln(out, "!", err)
				continue
			}
			ctrl.SetFilters(f)
		default:
			fmt.Fprintln(out, helpText)
		}
	}
	return scanner.Err()
}

func applyFilter(p client.Params, name, arg string) (domain.Filters, error) {
	f := domain.Filters{SortBy: p.SortBy, DateRange: p.DateRange, Verified: p.Verified}
	var err error
	switch name {
	case "sort":
		f.SortBy, err = domain.ParseSortBy(arg)
	case "range":
		f.DateRange, err = domain.ParseDateRange(arg)
	case "verified":
		f.Verified = arg == "on" || arg == "true"
	}
	return f, err
}

func render(w io.Writer, s client.Snapshot) {
	switch s.State {
	case client.StateSearching:
		fmt.Fprintf(w, "… searching %q\n", s.Params.Query)
	case client.StateError:
		fmt.Fprintf(w, "! %v\n", s.Err)
	case client.StateSuccess:
		if b := s.Results.Bundle; b != nil {
			renderUsers(w, b.Users)
			renderPosts(w, b.Posts)
			renderConversations(w, b.Conversations)
		} else {
			for _, it := range s.Results.Items {
				switch {
				case it.User != nil:
					renderUsers(w, []domain.UserSummary{*it.User})
				case it.Post != nil:
					renderPosts(w, []domain.PostSummary{*it.Post})
				case it.Conversation != nil:
					renderConversations(w, []domain.ConversationSummary{*it.Conversation})
				}
			}
		}
		more := ""
		if s.Pagination.HasMore {
			more = " (:more for more)"
		}
		fmt.Fprintf(w, "-- %d shown, total %d%s\n", s.Results.Len(), s.Pagination.Total, more)
	}
}

func renderUsers(w io.Writer, users []domain.UserSummary) {
	for _, u := range users {
		mark := ""
		if u.Verified {
			mark = " ✓"
		}
		fmt.Fprintf(w, "user  @%s %s%s\n", u.Username, u.Name, mark)
	}
}

func renderPosts(w io.Writer, posts []domain.PostSummary) {
	for _, p := range posts {
		fmt.Fprintf(w, "post  @%s: %s\n", p.Author.Username, p.Content)
	}
}

func renderConversations(w io.Writer, convs []domain.ConversationSummary) {
	for _, c := range convs {
		title := c.Title
		if title == "" {
			names := make([]string, len(c.Participants))
			for i, p := range c.Participants {
				names[i] = p.Username
			}
			title = strings.Join(names, ", ")
		}
		fmt.Fprintf(w, "conv  %s (%d unread)\n", title, c.UnreadCount)
	}
}
