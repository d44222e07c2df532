package support

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"

	"github.com/MeKo-Tech/dermascan/internal/scan"
	"github.com/MeKo-Tech/dermascan/internal/server"
	"github.com/cucumber/godog"
)

// aCropOnlyServerIsRunning starts an in-process server without a model.
func (testCtx *TestContext) aCropOnlyServerIsRunning() error {
	cfg := scan.DefaultConfig()
	cfg.OutputDir = testCtx.TempPath("crops")
	scanner, err := scan.New(cfg, nil)
	if err != nil {
		return err
	}
	srv, err := server.New(server.Config{Version: "integration"}, scanner, nil)
	if err != nil {
		return err
	}
	testCtx.HTTPServer = httptest.NewServer(srv.Handler())
	return nil
}

func (testCtx *TestContext) iGet(path string) error {
	resp, err := http.Get(testCtx.HTTPServer.URL + path) //nolint:noctx // test helper
	if err != nil {
		return err
	}
	return testCtx.storeResponse(resp)
}

func (testCtx *TestContext) iPostToWithFields(name, path string, table *godog.Table) error {
	data, err := os.ReadFile(testCtx.Images[name])
	if err != nil {
		return fmt.Errorf("unknown image %q: %w", name, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if table != nil {
		for _, row := range table.Rows {
			if len(row.Cells) != 2 {
				return errors.New("field rows need a name and a value")
			}
			if err := mw.WriteField(row.Cells[0].Value, row.Cells[1].Value); err != nil {
				return err
			}
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.HTTPServer.URL+path, mw.FormDataContentType(), &buf) //nolint:noctx // test helper
	if err != nil {
		return err
	}
	return testCtx.storeResponse(resp)
}

func (testCtx *TestContext) iPostTo(name, path string) error {
	return testCtx.iPostToWithFields(name, path, nil)
}

func (testCtx *TestContext) storeResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(status string) error {
	want, err := strconv.Atoi(status)
	if err != nil {
		return err
	}
	if testCtx.LastHTTPStatusCode != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]
	if got != value {
		return fmt.Errorf("expected header %s=%q, got %q", name, value, got)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !bytes.Contains([]byte(testCtx.LastHTTPResponse), []byte(text)) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// RegisterServerSteps registers the HTTP steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a crop-only server is running$`, testCtx.aCropOnlyServerIsRunning)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGet)
	sc.Step(`^I POST "([^"]*)" to "([^"]*)" with fields:$`, testCtx.iPostToWithFields)
	sc.Step(`^I POST "([^"]*)" to "([^"]*)"$`, testCtx.iPostTo)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
}
