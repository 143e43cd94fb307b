package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ipobot/pkg/database"
	"ipobot/services/alerts"
	"ipobot/services/finnhub"
	"ipobot/services/news"
	"ipobot/services/notify"
	"ipobot/services/tracker"
)

const lookupTimeout = 30 * time.Second

// lookup runs fn with a configured Finnhub client and quote source
func lookup(fn func(ctx context.Context, env *lookupEnv) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	fh, err := newFinnhub(cfg, logger)
	if err != nil {
		return err
	}
	defer fh.Close()

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	return fn(ctx, &lookupEnv{
		loc:    cfg.Location,
		quotes: quoteSource(cfg, fh, logger),
		fh:     fh,
		news:   news.NewReader("", logger),
	})
}

// finnhubAPI is the part of the Finnhub client the lookups use directly
type finnhubAPI interface {
	EarningsCalendar(ctx context.Context, from, to, symbol string) ([]finnhub.Earning, error)
	NewsSentiment(ctx context.Context, symbol string) (*finnhub.NewsSentiment, error)
	CompanyNews(ctx context.Context, symbol, from, to string) ([]finnhub.Article, error)
}

type lookupEnv struct {
	loc    *time.Location
	quotes tracker.QuoteSource
	fh     finnhubAPI
	news   *news.Reader
}

// resolveWindow resolves two date arguments into day starts
func (e *lookupEnv) resolveWindow(fromArg, toArg string) (time.Time, time.Time, error) {
	now := time.Now()
	from, err := tracker.ResolveDate(fromArg, now, e.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := tracker.ResolveDate(toArg, now, e.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s",
			to.Format(tracker.DateLayout), from.Format(tracker.DateLayout))
	}
	return from, to, nil
}

func windowArgs(args []string) (string, string) {
	from, to := "today", "tomorrow"
	if len(args) > 0 {
		from = args[0]
	}
	if len(args) > 1 {
		to = args[1]
	}
	return from, to
}

func quoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote SYMBOL",
		Short: "Show the current quote for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return lookup(func(ctx context.Context, env *lookupEnv) error {
				q, err := env.quotes.FetchQuote(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Println(notify.FormatQuote(q))
				return nil
			})
		},
	}
}

func calendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendar [FROM] [TO]",
		Short: "List scheduled IPOs (dates are YYYY-MM-DD, today or tomorrow)",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return lookup(func(ctx context.Context, env *lookupEnv) error {
				from, to, err := env.resolveWindow(windowArgs(args))
				if err != nil {
					return err
				}
				records, err := env.quotes.FetchIPOCalendar(ctx, from, to)
				if err != nil {
					return err
				}
				fmt.Println(notify.FormatCalendar(records))
				return nil
			})
		},
	}
}

func earningsCmd() *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "earnings [FROM] [TO]",
		Short: "List earnings announcements",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return lookup(func(ctx context.Context, env *lookupEnv) error {
				from, to, err := env.resolveWindow(windowArgs(args))
				if err != nil {
					return err
				}
				earnings, err := env.fh.EarningsCalendar(ctx, from.Format(tracker.DateLayout), to.Format(tracker.DateLayout), symbol)
				if err != nil {
					return err
				}
				if len(earnings) == 0 {
					fmt.Println("No earnings announcements scheduled.")
					return nil
				}
				fmt.Println("Earnings Calendar:")
				for _, e := range earnings {
					estimate := "N/A"
					if e.EPSEstimate != nil {
						estimate = fmt.Sprintf("%.2f", *e.EPSEstimate)
					}
					fmt.Printf("%s: $%s Q%d %d (%s) EPS estimate %s\n", e.Date, e.Symbol, e.Quarter, e.Year, e.Hour, estimate)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "Only show this symbol")
	return cmd
}

func sentimentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sentiment SYMBOL",
		Short: "Show the news sentiment for a symbol (premium Finnhub endpoint)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return lookup(func(ctx context.Context, env *lookupEnv) error {
				s, err := env.fh.NewsSentiment(ctx, args[0])
				if err != nil {
					fmt.Println(news.FormatSentiment(args[0], nil))
					return err
				}
				fmt.Println(news.FormatSentiment(args[0], s))
				return nil
			})
		},
	}
}

func headlinesCmd() *cobra.Command {
	var (
		limit  int
		source string
		days   int
	)
	cmd := &cobra.Command{
		Use:   "headlines SYMBOL",
		Short: "Show recent headlines for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return lookup(func(ctx context.Context, env *lookupEnv) error {
				var headlines []news.Headline
				switch source {
				case "rss":
					h, err := env.news.Headlines(ctx, args[0], limit)
					if err != nil {
						return err
					}
					headlines = h
				case "finnhub":
					to := tracker.StartOfDay(time.Now(), env.loc)
					from := tracker.AddDays(to, -days)
					articles, err := env.fh.CompanyNews(ctx, args[0], from.Format(tracker.DateLayout), to.Format(tracker.DateLayout))
					if err != nil {
						return err
					}
					headlines = news.FromArticles(articles, limit)
				default:
					return fmt.Errorf("unknown source %q: use rss or finnhub", source)
				}
				fmt.Println(news.FormatHeadlines(args[0], headlines))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of headlines")
	cmd.Flags().StringVar(&source, "source", "finnhub", "Headline source: finnhub or rss")
	cmd.Flags().IntVar(&days, "days", 7, "Days of company news to search (finnhub source)")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently delivered alerts (requires DATABASE_URL)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}

			db, err := database.New(database.DefaultConfig(cfg.DatabaseURL))
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
			defer cancel()

			list, err := alerts.NewStore(db.DB, nil).Recent(ctx, limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No alerts recorded yet.")
				return nil
			}
			for _, a := range list {
				fmt.Println(formatAlert(a))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of alerts to show")
	return cmd
}

func formatAlert(a alerts.Alert) string {
	at := a.CreatedAt.Format("2006-01-02 15:04:05")
	if a.Kind == alerts.KindDayComplete {
		return fmt.Sprintf("%s  day complete for %s (%d opened)", at, a.Day.Format(tracker.DateLayout), a.Opened)
	}
	price := "N/A"
	if a.Price.Valid {
		price = "$" + a.Price.Decimal.String()
	}
	return fmt.Sprintf("%s  %-6s %s opened at %s (expected $%s)", at, a.Symbol, a.CompanyName, price, a.ExpectedPrice)
}
