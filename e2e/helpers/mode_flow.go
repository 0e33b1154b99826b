// Command mode_flow exercises the full transition lifecycle via WS.
//
// It connects to a running pivot gateway, submits an input token carrying a
// trigger keyword, waits for the resulting mode.changed event, then performs
// a manual switch back and verifies the engine announces it.
//
// Usage: mode_flow -gateway ws://127.0.0.1:PORT/api/ws -token "let's chat" -expect conversation -back welcome
//
// Exit codes:
//
//	0 = all checks passed
//	1 = a check failed
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	wsclient "github.com/kborowski/pivot/clients/ws"
	"github.com/kborowski/pivot/internal/events"
)

func main() {
	gatewayURL := flag.String("gateway", "ws://127.0.0.1:18520/api/ws", "Gateway WS URL")
	token := flag.String("token", "let's chat", "Input token to submit")
	expect := flag.String("expect", "conversation", "Mode the token should trigger")
	back := flag.String("back", "welcome", "Mode to switch back to manually")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, *gatewayURL, *token, *expect, *back); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("PASS")
}

func run(ctx context.Context, gatewayURL, token, expect, back string) error {
	client, err := wsclient.Dial(ctx, gatewayURL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	// ── Step 1: Trigger a rule through the input stream ─────────────────
	if err := client.SubmitToken(token, "e2e"); err != nil {
		return fmt.Errorf("submit token: %w", err)
	}
	if err := waitForChange(client, expect, false); err != nil {
		return fmt.Errorf("keyword transition: %w", err)
	}
	fmt.Printf("ok: token %q moved engine to %q\n", token, expect)

	// ── Step 2: Manual switch back ───────────────────────────────────────
	if err := client.SwitchMode(back); err != nil {
		return fmt.Errorf("switch mode: %w", err)
	}
	if err := waitForChange(client, back, true); err != nil {
		return fmt.Errorf("manual switch: %w", err)
	}
	fmt.Printf("ok: manual switch back to %q announced\n", back)

	return nil
}

// waitForChange reads frames until a mode.changed event names the wanted
// target mode. Response frames and other events are skipped.
func waitForChange(client *wsclient.Client, want string, manual bool) error {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if frame.Event != string(events.EventModeChanged) {
			continue
		}

		var e events.Event
		if err := json.Unmarshal(frame.Payload, &e); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		p, ok := events.ModeChangedFrom(e)
		if !ok {
			continue
		}
		if p.To != want {
			continue
		}
		if p.Manual != manual {
			return fmt.Errorf("mode.changed to %q has manual=%v, want %v", want, p.Manual, manual)
		}
		return nil
	}
}
