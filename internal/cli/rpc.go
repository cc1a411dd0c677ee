package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/rpc"
	"github.com/spf13/cobra"
)

var (
	// RPC client flags
	rpcURL     string
	rpcKey     string
	rpcTimeout time.Duration
	rpcPrint   bool
)

// rpcCmd sends one JSON-RPC request to a running server
var rpcCmd = &cobra.Command{
	Use:   "rpc METHOD [field=value ...]",
	Short: "Call a method on a running server",
	Long: `Send a JSON-RPC request to a running offerd server and print the result.

Each field=value argument becomes a request parameter. Values that parse as
JSON (numbers, booleans, quoted strings) are sent as such; anything else is
sent as a string. With --key, or OFFERD_KEY in the environment, the request is
signed with that secp256k1 private key.

Example:
  offerd rpc place_offer collection=0xc0... item_id=7 amount=1000 --key $KEY`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRPC,
}

func init() {
	rootCmd.AddCommand(rpcCmd)

	rpcCmd.Flags().StringVar(&rpcURL, "url", "http://127.0.0.1:5005/", "server JSON-RPC endpoint")
	rpcCmd.Flags().StringVar(&rpcKey, "key", "", "hex private key used to sign the request")
	rpcCmd.Flags().DurationVar(&rpcTimeout, "timeout", 30*time.Second, "request timeout")
	rpcCmd.Flags().BoolVar(&rpcPrint, "print", false, "print the request instead of sending it")
}

// parseFields turns field=value arguments into request parameters
func parseFields(args []string) (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected field=value", arg)
		}
		params[name] = parseValue(raw)
	}
	return params, nil
}

func parseValue(raw string) interface{} {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	switch v.(type) {
	case json.Number, bool, string:
		return v
	default:
		return raw
	}
}

// buildRequest assembles the request body, signing it when key is set
func buildRequest(method string, params map[string]interface{}, key string) ([]byte, error) {
	if key != "" {
		kp, err := identity.KeyPairFromHex(key)
		if err != nil {
			return nil, fmt.Errorf("invalid signing key: %w", err)
		}
		if err := rpc.Sign(kp, method, params); err != nil {
			return nil, err
		}
	}
	return json.Marshal(map[string]interface{}{
		"method": method,
		"params": []interface{}{params},
	})
}

func runRPC(cmd *cobra.Command, args []string) error {
	params, err := parseFields(args[1:])
	if err != nil {
		return err
	}
	key := rpcKey
	if key == "" {
		key = os.Getenv("OFFERD_KEY")
	}
	body, err := buildRequest(args[0], params, key)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rpcPrint {
		return printJSON(out, body)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
	defer cancel()
	resp, err := postRPC(ctx, rpcURL, body)
	if err != nil {
		return err
	}
	if err := printJSON(out, resp); err != nil {
		return err
	}

	var envelope struct {
		Result struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &envelope); err == nil && envelope.Result.Status == "error" {
		return fmt.Errorf("%s failed: %s", args[0], envelope.Result.Error)
	}
	return nil
}

func postRPC(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

func printJSON(w io.Writer, data []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	_, err := fmt.Fprintln(w, pretty.String())
	return err
}
