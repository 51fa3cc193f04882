package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

var balanceCmd = &cobra.Command{
	Use:   "balance <account-id>",
	Short: "Print an account's balance, creating the account on first use",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return call(http.MethodGet, accountPath(args[0], "balance"), nil)
	},
}

var spendCmd = &cobra.Command{
	Use:   "spend <account-id> <amount>",
	Short: "Debit credits from an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		return call(http.MethodPost, accountPath(args[0], "spend"), map[string]any{"amount": amount})
	},
}

var purchaseRef string

var purchaseCmd = &cobra.Command{
	Use:   "purchase <account-id> <amount>",
	Short: "Add purchased credits to an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		return call(http.MethodPost, accountPath(args[0], "purchases"), map[string]any{
			"amount":       amount,
			"external_ref": purchaseRef,
		})
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <account-id>",
	Short: "List an account's most recent transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := accountPath(args[0], "transactions") + "?limit=" + strconv.Itoa(historyLimit)
		return call(http.MethodGet, path, nil)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <account-id>",
	Short: "Reconcile an account's balance with its transaction log",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return call(http.MethodGet, accountPath(args[0], "audit"), nil)
	},
}

func init() {
	purchaseCmd.Flags().StringVar(&purchaseRef, "ref", "", "external payment reference")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of transactions")
}

func accountPath(accountID, action string) string {
	return "/accounts/" + url.PathEscape(accountID) + "/" + action
}

// call sends one request to the server and prints the JSON response.
func call(method, path string, body any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverAddr, "/")+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		out.Reset()
		out.Write(raw)
	}
	fmt.Fprintln(os.Stdout, out.String())

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
