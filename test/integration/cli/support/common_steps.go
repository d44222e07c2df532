package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/dermascan/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// aLesionPhotoOfSize writes a synthetic lesion JPEG of the given size.
func (testCtx *TestContext) aLesionPhotoOfSize(name string, w, h int) error {
	cfg := testutil.DefaultLesionConfig()
	cfg.Size = testutil.ImageSize{Width: w, Height: h}
	path := testCtx.TempPath(name)
	if err := imaging.Save(testutil.GenerateLesionImage(cfg), path, imaging.JPEGQuality(92)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	testCtx.Images[name] = path
	return nil
}

// aBrokenImageNamed writes a file with an image extension but no image data.
func (testCtx *TestContext) aBrokenImageNamed(name string) error {
	path := testCtx.TempPath(name)
	if err := os.WriteFile(path, []byte("not an image"), 0o600); err != nil {
		return err
	}
	testCtx.Images[name] = path
	return nil
}

// iRunCommand executes a command and stores the result.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	output, err := cmd.CombinedOutput()
	testCtx.LastOutput = string(output)
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}

	return nil
}

// substituteCommandVariables replaces {tmp} and {image:name} placeholders.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	for name, path := range testCtx.Images {
		command = strings.ReplaceAll(command, "{image:"+name+"}", path)
	}
	return strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies the output holds a JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	output := strings.TrimSpace(testCtx.LastOutput)
	start := strings.IndexAny(output, "{[")
	if start == -1 {
		return fmt.Errorf("no JSON found in output: %s", output)
	}
	var v any
	if err := json.Unmarshal([]byte(output[start:]), &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, output)
	}
	return nil
}

// theFileShouldExist checks a file relative to the scenario temp dir.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := name
	if !filepath.IsAbs(path) {
		path = testCtx.TempPath(name)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected file %s: %w", path, err)
	}
	return nil
}

// RegisterCommonSteps registers command and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a lesion photo "([^"]*)" of (\d+)x(\d+) pixels$`, testCtx.aLesionPhotoOfSize)
	sc.Step(`^a broken image "([^"]*)"$`, testCtx.aBrokenImageNamed)
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
}
