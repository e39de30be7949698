package source

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"

	"fixloop/internal/config"
	"fixloop/internal/event"
	"fixloop/internal/logging"
)

var (
	// [tsl] ERROR in ./src/Foo.tsx(12,8)
	diagHeaderRe = regexp.MustCompile(`\[tsl\] ERROR in (.+)\((\d+),(\d+)\)`)
	// TS2307: Cannot find module 'shared-ui-lib'.
	diagCodeRe = regexp.MustCompile(`^\s*TS(\d+): (.*)$`)
	// Module not found: Error: Can't resolve 'lodash' in '/app/src'
	missingModuleRe = regexp.MustCompile(`Module not found: Error: Can't resolve '([^']+)' in '([^']+)'`)
	// Error: TypeScript emitted no output for ./src/index.tsx
	noEmitRe = regexp.MustCompile(`Error: TypeScript emitted no output for (.+?\.tsx?)`)
)

// BuildLogAdapter scans each service's webpack log for compiler
// diagnostics, unresolved modules, and the no-emit misconfiguration.
// Logs are append-only and re-read in full every cycle; deduplication
// happens downstream in the classifier.
type BuildLogAdapter struct {
	projectRoot string
	services    []config.Service
}

// NewBuildLogAdapter creates the adapter for the configured services.
func NewBuildLogAdapter(projectRoot string, services []config.Service) *BuildLogAdapter {
	return &BuildLogAdapter{projectRoot: projectRoot, services: services}
}

// Name implements Adapter.
func (a *BuildLogAdapter) Name() string { return "buildlog" }

// Collect implements Adapter.
func (a *BuildLogAdapter) Collect(_ context.Context, _ int) []event.Event {
	var events []event.Event
	for _, svc := range a.services {
		logPath := svc.LogFile(a.projectRoot)
		data, err := os.ReadFile(logPath)
		if err != nil {
			if !os.IsNotExist(err) {
				logging.BuildLogWarn("cannot read %s: %v", logPath, err)
			}
			continue
		}

		found := ScanLog(svc.Name, string(data))
		if len(found) > 0 {
			logging.BuildLog("%s: %d candidate errors in %s", svc.Name, len(found), logPath)
		}
		events = append(events, found...)
	}
	return events
}

// ScanLog extracts all three event families from one log's content.
// The families are scanned independently; a log may contribute
// diagnostics, missing modules, and a no-emit signature all at once.
func ScanLog(service, content string) []event.Event {
	var events []event.Event
	events = append(events, scanDiagnostics(service, content)...)
	events = append(events, scanMissingModules(service, content)...)
	events = append(events, scanNoEmit(service, content)...)
	return events
}

// scanDiagnostics walks the log line by line, pairing each
// "[tsl] ERROR in file(line,col)" header with the "TSxxxx: message"
// line that follows it. Message continuation lines are folded in until
// a blank line or the next error block.
func scanDiagnostics(service, content string) []event.Event {
	var events []event.Event
	lines := strings.Split(content, "\n")

	for i := 0; i < len(lines); i++ {
		header := diagHeaderRe.FindStringSubmatch(lines[i])
		if header == nil {
			continue
		}
		file := header[1]
		lineNo, _ := strconv.Atoi(header[2])
		colNo, _ := strconv.Atoi(header[3])

		// Find the diagnostic code on one of the immediately following lines.
		for j := i + 1; j < len(lines) && j <= i+2; j++ {
			code := diagCodeRe.FindStringSubmatch(lines[j])
			if code == nil {
				continue
			}
			tsCode := "TS" + code[1]
			message := strings.TrimSpace(code[2])

			for k := j + 1; k < len(lines); k++ {
				next := strings.TrimSpace(lines[k])
				if next == "" || strings.HasPrefix(next, "ERROR") || diagHeaderRe.MatchString(lines[k]) {
					break
				}
				message += " " + next
			}

			events = append(events, event.Event{
				Fingerprint: event.DiagnosticFingerprint(file, lineNo, tsCode),
				Kind:        event.TypeError(tsCode),
				Service:     service,
				File:        file,
				Line:        lineNo,
				Column:      colNo,
				Message:     message,
			})
			i = j
			break
		}
	}
	return events
}

func scanMissingModules(service, content string) []event.Event {
	var events []event.Event
	for _, m := range missingModuleRe.FindAllStringSubmatch(content, -1) {
		module, dir := m[1], m[2]
		events = append(events, event.Event{
			Fingerprint: event.MissingModuleFingerprint(module),
			Kind:        event.KindMissingModule,
			Service:     service,
			File:        dir,
			Message:     "Can't resolve '" + module + "' in '" + dir + "'",
		})
	}
	return events
}

func scanNoEmit(service, content string) []event.Event {
	var events []event.Event
	for _, m := range noEmitRe.FindAllStringSubmatch(content, -1) {
		events = append(events, event.Event{
			Fingerprint: event.NoEmitFingerprint(service),
			Kind:        event.KindTsconfigNoEmit,
			Service:     service,
			File:        m[1],
			Message:     "TypeScript emitted no output for " + m[1],
		})
	}
	return events
}
