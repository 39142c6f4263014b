package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/cucumber/godog"
)

// theServerIsRunning starts an in-process server on the workspace.
func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startTestHTTPServer(nil)
}

// theServerIsRunningWithLimit starts a server allowing n /write requests per minute.
func (testCtx *TestContext) theServerIsRunningWithLimit(n int) error {
	return testCtx.startTestHTTPServer(func(c *config.Config) {
		c.Server.RateLimit.RequestsPerMinute = n
	})
}

func (testCtx *TestContext) iRequest(method, path string) error {
	return testCtx.doRequest(method, path, nil)
}

func (testCtx *TestContext) iPostTo(path string, body *godog.DocString) error {
	return testCtx.doRequest("POST", path, []byte(body.Content))
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[name]; got != value {
		return fmt.Errorf("expected header %s=%q, got %q", name, value, got)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONShouldHave(field, value string) error {
	var body map[string]any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &body); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	if got := fmt.Sprint(body[field]); got != value {
		return fmt.Errorf("expected %s=%q, got %q", field, value, got)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAPNGOf(width, height int) error {
	img, err := png.Decode(bytes.NewReader(testCtx.LastHTTPResponse))
	if err != nil {
		return fmt.Errorf("response is not a PNG: %w", err)
	}
	if img.Bounds().Dx() != width || img.Bounds().Dy() != height {
		return fmt.Errorf("PNG is %dx%d, want %dx%d", img.Bounds().Dx(), img.Bounds().Dy(), width, height)
	}
	return nil
}

func (testCtx *TestContext) iRunFontmakeOverWebSocket() error {
	return testCtx.runFontmakeOverWebSocket(`{"type": "run"}`)
}

func (testCtx *TestContext) iSendOverWebSocket(request string) error {
	return testCtx.runFontmakeOverWebSocket(request)
}

// theLastEventShouldHave checks a field of the final WebSocket event.
func (testCtx *TestContext) theLastEventShouldHave(field, value string) error {
	if len(testCtx.LastEvents) == 0 {
		return fmt.Errorf("no WebSocket events received")
	}
	last := testCtx.LastEvents[len(testCtx.LastEvents)-1]
	if got := fmt.Sprint(last[field]); got != value {
		return fmt.Errorf("expected last event %s=%q, got %q (events: %v)", field, value, got, testCtx.LastEvents)
	}
	return nil
}

// theStagesShouldHaveStarted checks the order of stage start events.
func (testCtx *TestContext) theStagesShouldHaveStarted(table *godog.Table) error {
	var started []string
	for _, e := range testCtx.LastEvents {
		if e["type"] == "stage" && e["status"] == "started" {
			started = append(started, fmt.Sprint(e["stage"]))
		}
	}
	if len(started) != len(table.Rows) {
		return fmt.Errorf("expected %d started stages, got %v", len(table.Rows), started)
	}
	for i, row := range table.Rows {
		if started[i] != row.Cells[0].Value {
			return fmt.Errorf("stage %d: expected %s, got %s", i+1, row.Cells[0].Value, started[i])
		}
	}
	return nil
}

// RegisterServerSteps registers the HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with a limit of (\d+) writes? per minute$`, testCtx.theServerIsRunningWithLimit)
	sc.Step(`^I send a (GET|POST) request to "([^"]*)"$`, testCtx.iRequest)
	sc.Step(`^I POST to "([^"]*)":$`, testCtx.iPostTo)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response JSON should have "([^"]*)" set to "([^"]*)"$`, testCtx.theResponseJSONShouldHave)
	sc.Step(`^the response should be a PNG of (\d+) by (\d+) pixels$`, testCtx.theResponseShouldBeAPNGOf)
	sc.Step(`^I run fontmake over the WebSocket$`, testCtx.iRunFontmakeOverWebSocket)
	sc.Step(`^I send '([^']*)' over the WebSocket$`, testCtx.iSendOverWebSocket)
	sc.Step(`^the last event should have "([^"]*)" set to "([^"]*)"$`, testCtx.theLastEventShouldHave)
	sc.Step(`^these stages should have started:$`, testCtx.theStagesShouldHaveStarted)
}
