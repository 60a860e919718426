// Command dialtester drives a running gateway endpoint through a dialogue,
// one keystroke per round trip, the way a handset would.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/gkash/ussd/backend/internal/model/ussd"
)

type options struct {
	endpoint    string
	sessionID   string
	phoneNumber string
	serviceCode string
	keys        []string
	form        bool
	timeout     time.Duration
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] failed to load .env, using system environment: %v", err)
	}

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	client := &http.Client{Timeout: opts.timeout}
	var input io.Reader
	if len(opts.keys) == 0 {
		input = os.Stdin
	}
	if err := run(context.Background(), client, opts, input, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	var opts options
	flagSet := pflag.NewFlagSet("dialtester", pflag.ContinueOnError)
	flagSet.StringVar(&opts.endpoint, "url", "http://localhost:"+port+"/ussd", "gateway callback URL")
	flagSet.StringVar(&opts.sessionID, "session", "", "session id (default: random)")
	flagSet.StringVarP(&opts.phoneNumber, "phone", "p", "+254712345678", "subscriber phone number")
	flagSet.StringVar(&opts.serviceCode, "code", "*123#", "service code sent with each request")
	flagSet.StringSliceVarP(&opts.keys, "keys", "k", nil, "comma separated inputs to send after dialing; reads stdin when empty")
	flagSet.BoolVar(&opts.form, "form", false, "send form-encoded bodies instead of JSON")
	flagSet.DurationVar(&opts.timeout, "timeout", 45*time.Second, "per request timeout")

	if err := flagSet.Parse(args); err != nil {
		return options{}, fmt.Errorf("parse flags: %w", err)
	}
	if opts.sessionID == "" {
		opts.sessionID = "dialtester-" + uuid.NewString()
	}
	return opts, nil
}

// run dials, then sends each key until the dialogue ends. When in is non-nil
// keys are read from it line by line instead of opts.keys.
func run(ctx context.Context, client *http.Client, opts options, in io.Reader, out io.Writer) error {
	resp, err := post(ctx, client, opts, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", resp)
	if ussd.IsEnd(resp) {
		return nil
	}

	next := keySource(opts.keys, in)
	for {
		key, ok := next()
		if !ok {
			return nil
		}
		fmt.Fprintf(out, "> %s\n", key)

		resp, err := post(ctx, client, opts, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", resp)
		if ussd.IsEnd(resp) {
			return nil
		}
	}
}

func keySource(keys []string, in io.Reader) func() (string, bool) {
	if in != nil {
		scanner := bufio.NewScanner(in)
		return func() (string, bool) {
			if !scanner.Scan() {
				return "", false
			}
			return strings.TrimSpace(scanner.Text()), true
		}
	}
	i := 0
	return func() (string, bool) {
		if i >= len(keys) {
			return "", false
		}
		i++
		return keys[i-1], true
	}
}

func post(ctx context.Context, client *http.Client, opts options, text string) (string, error) {
	var (
		body        io.Reader
		contentType string
	)
	if opts.form {
		values := url.Values{
			"sessionId":   {opts.sessionID},
			"phoneNumber": {opts.phoneNumber},
			"serviceCode": {opts.serviceCode},
			"text":        {text},
		}
		body = strings.NewReader(values.Encode())
		contentType = "application/x-www-form-urlencoded"
	} else {
		payload, err := json.Marshal(ussd.Request{
			SessionID:   opts.sessionID,
			PhoneNumber: opts.phoneNumber,
			Text:        text,
			ServiceCode: opts.serviceCode,
		})
		if err != nil {
			return "", err
		}
		body = strings.NewReader(string(payload))
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", opts.endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return string(raw), nil
}
