package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ambiora/techfest-backend/internal/checkout"
	"github.com/ambiora/techfest-backend/internal/ticket"
)

var (
	apiURL    string
	statePath string
	feeBPS    int64
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Buy event passes from the terminal against a running server",
}

func machine() *checkout.Machine {
	m := checkout.New(checkout.NewAPIClient(apiURL), checkout.FileStore{Path: statePath})
	m.FeeBPS = feeBPS
	return m
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in; the password is read from --password or CHECKOUT_PASSWORD",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, _ := cmd.Flags().GetString("password")
		if pw == "" {
			pw = os.Getenv("CHECKOUT_PASSWORD")
		}
		if pw == "" {
			return fmt.Errorf("password required")
		}
		if err := machine().Login(cmd.Context(), args[0], pw); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", strings.ToLower(args[0]))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return machine().Logout()
	},
}

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Show the cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := machine().Cart()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "cart is empty")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "EVENT\tNAME\tPRICE")
		for _, it := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", it.EventID, it.Name, rupees(it.Price))
		}
		return tw.Flush()
	},
}

var cartAddCmd = &cobra.Command{
	Use:   "add <event-id>...",
	Short: "Add events to the cart",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := machine()
		for _, id := range args {
			item, err := m.AddToCart(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", item.Name, rupees(item.Price))
		}
		return nil
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <event-id>",
	Short: "Remove an event from the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return machine().RemoveFromCart(args[0])
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return machine().ClearCart()
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Price the cart from the live catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := machine()
		s, _, err := m.Enter(cmd.Context(), "")
		if err != nil {
			return err
		}
		if m.State() == checkout.StateRedirectLogin {
			return fmt.Errorf("not signed in; run checkout login first")
		}
		printSummary(cmd.OutOrStdout(), s)
		return nil
	},
}

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Open a gateway order for the cart and print the hosted page session",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := machine()
		s, err := m.Summarize(cmd.Context())
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), s)
		order, err := m.Pay(cmd.Context())
		if err != nil {
			if b := m.Banner(); b != "" {
				return fmt.Errorf("%s", b)
			}
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\norder:       %s\n", order.OrderID)
		fmt.Fprintf(out, "session:     %s\n", order.PaymentSessionID)
		fmt.Fprintf(out, "environment: %s\n", order.Environment)
		fmt.Fprintf(out, "\nComplete the payment on the gateway page, then run:\n  checkout return --order-id %s\n", order.OrderID)
		return nil
	},
}

var returnCmd = &cobra.Command{
	Use:   "return",
	Short: "Verify an order after coming back from the gateway page",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("url")
		if raw == "" {
			orderID, _ := cmd.Flags().GetString("order-id")
			status, _ := cmd.Flags().GetString("status")
			if orderID == "" {
				return fmt.Errorf("either --url or --order-id is required")
			}
			raw = "/checkout?order_id=" + orderID + "&status=" + status
		}

		m := machine()
		ret, err := m.HandleReturn(cmd.Context(), raw)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if m.State() != checkout.StateTicketsIssued {
			fmt.Fprintf(out, "order %s: %s\n%s\n", ret.OrderID, ret.Status, m.Banner())
			return nil
		}
		fmt.Fprintf(out, "order %s confirmed\n\n", ret.OrderID)
		return printTickets(out, ret.Tickets)
	},
}

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List your tickets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := machine().Tickets(cmd.Context())
		if err != nil {
			return err
		}
		return printTickets(cmd.OutOrStdout(), ts)
	},
}

func printSummary(w io.Writer, s *checkout.Summary) {
	if s == nil {
		return
	}
	for _, name := range s.Unavailable {
		fmt.Fprintf(w, "! %s is no longer offered and was left out\n", name)
	}
	for _, name := range s.Repriced {
		fmt.Fprintf(w, "! %s changed price since it was added\n", name)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, l := range s.Lines {
		fmt.Fprintf(tw, "%s\t%s\t\n", l.EventName, rupees(l.EventPrice))
	}
	fmt.Fprintf(tw, "Subtotal\t%s\t\n", rupees(s.Subtotal))
	fmt.Fprintf(tw, "Convenience fee\t%s\t\n", rupees(s.Fee))
	fmt.Fprintf(tw, "Total\t%s\t\n", rupees(s.Total))
	_ = tw.Flush()
}

func printTickets(w io.Writer, ts []ticket.Ticket) error {
	if len(ts) == 0 {
		fmt.Fprintln(w, "no tickets yet")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tEVENT\tDATE\tTICKET")
	for _, t := range ts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Label, t.EventName, t.EventDate, t.ID)
	}
	return tw.Flush()
}

func rupees(n int64) string { return fmt.Sprintf("₹%d", n) }

func init() {
	checkoutCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("CHECKOUT_API_URL", "http://localhost:3001"), "Server base URL")
	checkoutCmd.PersistentFlags().StringVar(&statePath, "state", checkout.DefaultPath(), "Local cart and session file")
	checkoutCmd.PersistentFlags().Int64Var(&feeBPS, "fee-bps", 250, "Convenience fee in basis points, for the local summary")

	loginCmd.Flags().String("password", "", "Account password")
	returnCmd.Flags().String("url", "", "Full return URL from the gateway")
	returnCmd.Flags().String("order-id", "", "Order to verify")
	returnCmd.Flags().String("status", "", "Status the gateway redirect reported (informational)")

	cartCmd.AddCommand(cartAddCmd, cartRemoveCmd, cartClearCmd)
	checkoutCmd.AddCommand(loginCmd, logoutCmd, cartCmd, summaryCmd, payCmd, returnCmd, ticketsCmd)
}

func envOr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}
