package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// iRunCommand executes a command and stores the result.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := splitCommand(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...) //nolint:gosec // G204: commands come from feature files
	cmd.Dir = testCtx.WorkingDir
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

// splitCommand splits on whitespace, keeping single-quoted arguments together.
func splitCommand(command string) []string {
	var parts []string
	var current strings.Builder
	quoted, inArg := false, false
	for _, r := range command {
		switch {
		case r == '\'':
			quoted = !quoted
			inArg = true
		case (r == ' ' || r == '\t') && !quoted:
			if inArg {
				parts = append(parts, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		parts = append(parts, current.String())
	}
	return parts
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

// theOutputShouldNotContain verifies the output lacks specific text.
func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldShowInOrder checks that each table row appears after the previous one.
func (testCtx *TestContext) theOutputShouldShowInOrder(table *godog.Table) error {
	offset := 0
	for _, row := range table.Rows {
		text := row.Cells[0].Value
		idx := strings.Index(testCtx.LastOutput[offset:], text)
		if idx < 0 {
			return fmt.Errorf("'%s' not found after offset %d\nActual output: %s", text, offset, testCtx.LastOutput)
		}
		offset += idx + len(text)
	}
	return nil
}

// theFileShouldExist checks a workspace-relative or absolute path.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := testCtx.resolvePath(name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected %s to exist: %w", path, err)
	}
	return nil
}

// theFileShouldNotExist checks that nothing exists at name.
func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	path := testCtx.resolvePath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("expected %s not to exist", path)
	}
	return nil
}

func (testCtx *TestContext) resolvePath(name string) string {
	name = testCtx.substituteCommandVariables(name)
	if filepath.IsAbs(name) {
		return name
	}
	return testCtx.WorkspacePath(name)
}

// theEnvironmentVariableIsSetTo sets an environment variable for later commands.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substituteCommandVariables(value))
	return nil
}

// aTextFileContaining writes a text file into the workspace.
func (testCtx *TestContext) aTextFileContaining(name string, content *godog.DocString) error {
	path := testCtx.WorkspacePath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content.Content), 0o600)
}

// anEmptyWorkspace creates the workspace directory without any stage input.
func (testCtx *TestContext) anEmptyWorkspace() error {
	return os.MkdirAll(testCtx.Workspace, 0o750)
}

// RegisterCommonSteps registers command, output and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an empty workspace$`, testCtx.anEmptyWorkspace)
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should show in order:$`, testCtx.theOutputShouldShowInOrder)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
	sc.Step(`^a text file "([^"]*)" containing:$`, testCtx.aTextFileContaining)
}
