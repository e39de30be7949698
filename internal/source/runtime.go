package source

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"fixloop/internal/config"
	"fixloop/internal/event"
	"fixloop/internal/logging"
)

// whiteScreenThreshold is the minimum rendered body text length below
// which a loaded page is considered blank.
const whiteScreenThreshold = 50

// RuntimeAdapter drives a headless browser to the container shell,
// waits for the page to settle, and drains the in-page ErrorLogger
// plus any console errors captured during the settle window. Every
// failure mode (no browser, navigation timeout, missing ErrorLogger)
// yields zero events.
type RuntimeAdapter struct {
	cfg     config.BrowserConfig
	service string
	url     string
}

// NewRuntimeAdapter creates the browser probe for the container service.
func NewRuntimeAdapter(cfg config.BrowserConfig, service, url string) *RuntimeAdapter {
	return &RuntimeAdapter{cfg: cfg, service: service, url: url}
}

// Name implements Adapter.
func (a *RuntimeAdapter) Name() string { return "runtime" }

// Collect implements Adapter. The browser is launched fresh per cycle
// and torn down before returning.
func (a *RuntimeAdapter) Collect(ctx context.Context, _ int) []event.Event {
	controlURL, err := launcher.New().Headless(a.cfg.Headless).Launch()
	if err != nil {
		logging.RuntimeWarn("launch chrome: %v", err)
		return nil
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		logging.RuntimeWarn("connect to chrome: %v", err)
		return nil
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		logging.RuntimeWarn("create page: %v", err)
		return nil
	}

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	capture := newConsoleCapture(a.service)
	wait := page.Context(probeCtx).EachEvent(
		capture.onConsole,
		capture.onException,
	)
	go wait()

	if err := page.Timeout(a.cfg.NavTimeout()).Navigate(a.url); err != nil {
		logging.RuntimeWarn("navigate %s: %v", a.url, err)
		return nil
	}
	if err := page.Timeout(a.cfg.NavTimeout()).WaitLoad(); err != nil {
		logging.RuntimeWarn("wait load %s: %v", a.url, err)
		return nil
	}
	_ = page.Timeout(a.cfg.NavTimeout()).WaitIdle(a.cfg.NavTimeout())
	time.Sleep(a.cfg.Settle())

	var events []event.Event
	events = append(events, a.drainErrorLogger(page)...)
	events = append(events, a.checkWhiteScreen(page)...)
	cancel()
	events = append(events, capture.events()...)

	logging.Runtime("%s: %d runtime candidates", a.service, len(events))
	return events
}

// drainErrorLogger evaluates the in-page error collector, if the
// application exposes one.
func (a *RuntimeAdapter) drainErrorLogger(page *rod.Page) []event.Event {
	res, err := page.Timeout(a.cfg.NavTimeout()).Evaluate(&rod.EvalOptions{
		JS: `
		() => {
			if (typeof window.ErrorLogger !== 'undefined' &&
				typeof window.ErrorLogger.getErrors === 'function') {
				return JSON.stringify(window.ErrorLogger.getErrors());
			}
			return "[]";
		}
		`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil {
		logging.RuntimeWarn("ErrorLogger evaluation failed: %v", err)
		return nil
	}

	records, err := event.DecodeRuntimeRecords([]byte(res.Value.Str()))
	if err != nil {
		logging.RuntimeWarn("%v", err)
		return nil
	}
	return EventsFromRecords(a.service, records)
}

// checkWhiteScreen reports a near-empty rendered body as one runtime
// event for the service.
func (a *RuntimeAdapter) checkWhiteScreen(page *rod.Page) []event.Event {
	res, err := page.Timeout(a.cfg.NavTimeout()).Evaluate(&rod.EvalOptions{
		JS:      `() => ((document.body && document.body.innerText) || '').trim().length`,
		ByValue: true,
	})
	if err != nil || res == nil {
		return nil
	}
	if res.Value.Int() >= whiteScreenThreshold {
		return nil
	}
	return []event.Event{{
		Fingerprint: event.RuntimeFingerprint("white_screen:" + a.service),
		Kind:        event.KindRuntime,
		Service:     a.service,
		Message:     "page rendered almost no content (possible white screen)",
	}}
}

// EventsFromRecords wraps decoded ErrorLogger records as events.
func EventsFromRecords(service string, records []event.RuntimeRecord) []event.Event {
	var events []event.Event
	for _, rec := range records {
		kind := rec.Classify()
		fp := event.RuntimeFingerprint(rec.ID)
		if kind == event.KindUnknown {
			// No stable identifier; fall back to content identity.
			fp = event.ConsoleFingerprint(service, rec.Message+rec.Source)
		}
		events = append(events, event.Event{
			Fingerprint: fp,
			Kind:        kind,
			Service:     service,
			File:        rec.Source,
			Message:     rec.Message,
		})
	}
	return events
}

// consoleCapture collects error-level console output and page
// exceptions emitted while the probe holds the page open.
type consoleCapture struct {
	service string
	mu      sync.Mutex
	found   []event.Event
}

func newConsoleCapture(service string) *consoleCapture {
	return &consoleCapture{service: service}
}

func (c *consoleCapture) onConsole(ev *proto.RuntimeConsoleAPICalled) {
	if ev.Type != proto.RuntimeConsoleAPICalledTypeError && ev.Type != proto.RuntimeConsoleAPICalledTypeWarning {
		return
	}
	msg := stringifyConsoleArgs(ev.Args)
	if msg == "" {
		return
	}
	c.add(event.Event{
		Fingerprint: event.ConsoleFingerprint(c.service, msg),
		Kind:        event.KindRuntime,
		Service:     c.service,
		Message:     "[console." + string(ev.Type) + "] " + msg,
	})
}

func (c *consoleCapture) onException(ev *proto.RuntimeExceptionThrown) {
	if ev.ExceptionDetails == nil {
		return
	}
	msg := ev.ExceptionDetails.Text
	if ev.ExceptionDetails.Exception != nil && ev.ExceptionDetails.Exception.Description != "" {
		msg = ev.ExceptionDetails.Exception.Description
	}
	c.add(event.Event{
		Fingerprint: event.ConsoleFingerprint(c.service, msg),
		Kind:        event.KindRuntime,
		Service:     c.service,
		Message:     "[pageerror] " + msg,
	})
}

func (c *consoleCapture) add(ev event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.found = append(c.found, ev)
}

func (c *consoleCapture) events() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.Event, len(c.found))
	copy(out, c.found)
	return out
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
