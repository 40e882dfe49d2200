package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"bibliohub/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

var (
	baseURL    string
	httpClient = &http.Client{Timeout: 15 * time.Second}
)

func main() {
	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Command line client for the bibliohub API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "api", defaultBaseURL, "API base URL")

	root.AddCommand(booksCmd())
	root.AddCommand(loansCmd())
	root.AddCommand(reservationsCmd())
	root.AddCommand(feedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func booksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and manage the book inventory",
	}

	var (
		query    string
		category string
		onlyAvl  bool
		limit    int
		offset   int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List books, with optional filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := url.Parse(baseURL + "/api/books")
			if err != nil {
				return err
			}
			qv := u.Query()
			if query != "" {
				qv.Set("q", query)
			}
			if category != "" {
				qv.Set("category", category)
			}
			if onlyAvl {
				qv.Set("available", "true")
			}
			qv.Set("limit", fmt.Sprintf("%d", limit))
			qv.Set("offset", fmt.Sprintf("%d", offset))
			u.RawQuery = qv.Encode()

			var resp map[string]any
			if err := doJSON(cmd.Context(), http.MethodGet, u.String(), nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	list.Flags().StringVar(&query, "q", "", "search in title/author/isbn")
	list.Flags().StringVar(&category, "category", "", "category filter")
	list.Flags().BoolVar(&onlyAvl, "available", false, "only books with copies on the shelf")
	list.Flags().IntVar(&limit, "limit", 20, "page size")
	list.Flags().IntVar(&offset, "offset", 0, "offset")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <book-id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp models.Book
			if err := doJSON(cmd.Context(), http.MethodGet, baseURL+"/api/books/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	})

	var (
		title  string
		bAuth  string
		isbn   string
		cat    string
		copies int
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"title":        title,
				"author":       bAuth,
				"isbn":         isbn,
				"category":     cat,
				"total_copies": copies,
			}
			var resp models.Book
			if err := doJSON(cmd.Context(), http.MethodPost, baseURL+"/api/books", payload, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	add.Flags().StringVar(&title, "title", "", "book title")
	add.Flags().StringVar(&bAuth, "author", "", "book author")
	add.Flags().StringVar(&isbn, "isbn", "", "ISBN")
	add.Flags().StringVar(&cat, "category", "", "category")
	add.Flags().IntVar(&copies, "copies", 1, "total copies")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("author")
	_ = add.MarkFlagRequired("isbn")
	_ = add.MarkFlagRequired("category")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "queue <book-id>",
		Short: "Show the reservation queue for a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]any
			if err := doJSON(cmd.Context(), http.MethodGet, baseURL+"/api/books/"+url.PathEscape(args[0])+"/queue", nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	})

	return cmd
}

func loansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Check books out, renew them and return them",
	}

	var (
		bookID        string
		name          string
		email         string
		phone         string
		reservationID string
	)
	checkout := &cobra.Command{
		Use:   "checkout",
		Short: "Check out one copy of a book",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"book_id":        bookID,
				"borrower_name":  name,
				"borrower_email": email,
			}
			if phone != "" {
				payload["borrower_phone"] = phone
			}
			if reservationID != "" {
				payload["reservation_id"] = reservationID
			}
			var resp models.Loan
			if err := doJSON(cmd.Context(), http.MethodPost, baseURL+"/api/loans", payload, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	checkout.Flags().StringVar(&bookID, "book-id", "", "book id")
	checkout.Flags().StringVar(&name, "name", "", "borrower name")
	checkout.Flags().StringVar(&email, "email", "", "borrower email")
	checkout.Flags().StringVar(&phone, "phone", "", "borrower phone")
	checkout.Flags().StringVar(&reservationID, "reservation-id", "", "fulfill this reservation with the checkout")
	_ = checkout.MarkFlagRequired("book-id")
	_ = checkout.MarkFlagRequired("name")
	_ = checkout.MarkFlagRequired("email")
	cmd.AddCommand(checkout)

	cmd.AddCommand(&cobra.Command{
		Use:   "renew <loan-id>",
		Short: "Extend a loan by one period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp models.Loan
			if err := doJSON(cmd.Context(), http.MethodPost, baseURL+"/api/loans/"+url.PathEscape(args[0])+"/renew", nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "return <loan-id>",
		Short: "Return a loan and see the fine, if any",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp models.Loan
			if err := doJSON(cmd.Context(), http.MethodPost, baseURL+"/api/loans/"+url.PathEscape(args[0])+"/return", nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			if resp.Fine > 0 {
				fmt.Printf("fine due: %.2f\n", resp.Fine)
			}
			return nil
		},
	})

	var (
		status string
		limit  int
		offset int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List loans, optionally by status (active, renewed, returned, overdue)",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := url.Parse(baseURL + "/api/loans")
			if err != nil {
				return err
			}
			qv := u.Query()
			if status != "" {
				qv.Set("status", status)
			}
			qv.Set("limit", fmt.Sprintf("%d", limit))
			qv.Set("offset", fmt.Sprintf("%d", offset))
			u.RawQuery = qv.Encode()

			var resp map[string]any
			if err := doJSON(cmd.Context(), http.MethodGet, u.String(), nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter")
	list.Flags().IntVar(&limit, "limit", 20, "page size")
	list.Flags().IntVar(&offset, "offset", 0, "offset")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "history <email>",
		Short: "List loans for one borrower",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]any
			if err := doJSON(cmd.Context(), http.MethodGet, baseURL+"/api/borrowers/"+url.PathEscape(args[0])+"/loans", nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	})

	return cmd
}

func reservationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reservations",
		Short: "Queue for books and walk the reservation lifecycle",
	}

	var (
		bookID string
		name   string
		email  string
		phone  string
	)
	reserve := &cobra.Command{
		Use:   "create",
		Short: "Join the waiting list for a book",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"book_id":        bookID,
				"borrower_name":  name,
				"borrower_email": email,
			}
			if phone != "" {
				payload["borrower_phone"] = phone
			}
			var resp models.Reservation
			if err := doJSON(cmd.Context(), http.MethodPost, baseURL+"/api/reservations", payload, &resp); err != nil {
				return err
			}
			printJSON(resp)
			fmt.Printf("queue position: %d\n", resp.Priority)
			return nil
		},
	}
	reserve.Flags().StringVar(&bookID, "book-id", "", "book id")
	reserve.Flags().StringVar(&name, "name", "", "borrower name")
	reserve.Flags().StringVar(&email, "email", "", "borrower email")
	reserve.Flags().StringVar(&phone, "phone", "", "borrower phone")
	_ = reserve.MarkFlagRequired("book-id")
	_ = reserve.MarkFlagRequired("name")
	_ = reserve.MarkFlagRequired("email")
	cmd.AddCommand(reserve)

	for action, short := range map[string]string{
		"notify":  "Mark a reservation notified and open its pickup window",
		"fulfill": "Close a reservation because the borrower took the copy",
		"cancel":  "Cancel an open reservation",
	} {
		action := action
		cmd.AddCommand(&cobra.Command{
			Use:   action + " <reservation-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var resp models.Reservation
				endpoint := baseURL + "/api/reservations/" + url.PathEscape(args[0]) + "/" + action
				if err := doJSON(cmd.Context(), http.MethodPost, endpoint, nil, &resp); err != nil {
					return err
				}
				printJSON(resp)
				return nil
			},
		})
	}

	var (
		status string
		book   string
		limit  int
		offset int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := url.Parse(baseURL + "/api/reservations")
			if err != nil {
				return err
			}
			qv := u.Query()
			if status != "" {
				qv.Set("status", status)
			}
			if book != "" {
				qv.Set("book_id", book)
			}
			qv.Set("limit", fmt.Sprintf("%d", limit))
			qv.Set("offset", fmt.Sprintf("%d", offset))
			u.RawQuery = qv.Encode()

			var resp map[string]any
			if err := doJSON(cmd.Context(), http.MethodGet, u.String(), nil, &resp); err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter (active, notified, fulfilled, cancelled, expired)")
	list.Flags().StringVar(&book, "book-id", "", "book filter")
	list.Flags().IntVar(&limit, "limit", 20, "page size")
	list.Flags().IntVar(&offset, "offset", 0, "offset")
	cmd.AddCommand(list)

	return cmd
}

func feedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Follow circulation events",
	}

	var wsURL string
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Stream circulation events over WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := wsURL
			if endpoint == "" {
				var err error
				endpoint, err = websocketURL(baseURL, "/ws")
				if err != nil {
					return err
				}
			}

			conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
			if err != nil {
				return err
			}
			defer conn.Close()

			log.Printf("[feed] connected to %s", endpoint)
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return err
				}
				fmt.Println(strings.TrimSpace(string(msg)))
			}
		},
	}
	watch.Flags().StringVar(&wsURL, "ws", "", "WebSocket URL (defaults to /ws on the API host)")
	cmd.AddCommand(watch)

	return cmd
}

func doJSON(ctx context.Context, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func websocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: path}).String(), nil
}
