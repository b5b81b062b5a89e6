// Package actionio is the runner's side of the GitHub Actions workflow commands: it reads inputs, publishes
// the task ARN output, annotates failures and writes the job step summary.
package actionio

import (
	"fmt"
	"strings"

	"github.com/bennettrogers/run-ecs-task-action/taskrunner"
	"github.com/sethvargo/go-githubactions"
)

// TaskARNOutput is the name of the output downstream steps read the launched task's ARN from.
const TaskARNOutput = "taskArn"

type IO struct {
	action *githubactions.Action
}

func New(opts ...githubactions.Option) *IO {
	return &IO{action: githubactions.New(opts...)}
}

// GetInput returns the whitespace-trimmed value of INPUT_<NAME>.
func (a *IO) GetInput(name string) string {
	return a.action.GetInput(name)
}

func (a *IO) SetTaskARN(taskARN string) {
	a.action.SetOutput(TaskARNOutput, taskARN)
}

// Fail marks the step as failed in the workflow run UI. It does not exit.
func (a *IO) Fail(err error) {
	a.action.Errorf("%s", err.Error())
}

func (a *IO) PrintLogs(containerName string, lines []string) {
	a.action.Group(fmt.Sprintf("Logs of container %s", containerName))
	defer a.action.EndGroup()
	for _, line := range lines {
		a.action.Infof("%s", line)
	}
}

func (a *IO) Summarize(params taskrunner.Params, result *taskrunner.Result) {
	var b strings.Builder
	b.WriteString("### ECS task run\n\n")
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Cluster | `%s` |\n", params.Cluster)
	fmt.Fprintf(&b, "| Service | `%s` |\n", params.Service)
	fmt.Fprintf(&b, "| Command | `%s` |\n", params.Command)
	fmt.Fprintf(&b, "| Task | `%s` |\n", result.TaskARN)
	fmt.Fprintf(&b, "| Container | `%s` |\n", result.ContainerName)
	fmt.Fprintf(&b, "| Exit code | %d |\n", result.ExitCode)
	if len(result.StoppedReason) > 0 {
		fmt.Fprintf(&b, "| Stopped reason | %s |\n", result.StoppedReason)
	}
	a.action.AddStepSummary(b.String())
}
