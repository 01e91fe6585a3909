package experiment

import (
	"path"
	"strconv"

	"github.com/zeu5/counting-rm/rl"
	"github.com/zeu5/counting-rm/util"
)

// tracedEpisode is one line of a traces file
type tracedEpisode struct {
	ID         string          `json:"id"`
	Experiment string          `json:"experiment"`
	Run        int             `json:"run"`
	Episode    int             `json:"episode"`
	Terminated bool            `json:"terminated"`
	Error      string          `json:"error,omitempty"`
	Actions    []string        `json:"actions"`
	Steps      []rl.Experience `json:"steps"`
}

func tracesFile(basePath, name string, run int) string {
	return path.Join(basePath, "traces", name+"_"+strconv.Itoa(run)+".jsonl")
}

func recordTrace(basePath, name string, run, episode int, result *EpisodeResult) error {
	steps := result.Trace.Experiences()
	actions := make([]string, len(steps))
	for i, s := range steps {
		if s.Action != nil {
			actions[i] = s.Action.Hash()
		}
	}
	line := tracedEpisode{
		ID:         result.ID,
		Experiment: name,
		Run:        run,
		Episode:    episode,
		Terminated: result.Terminated,
		Actions:    actions,
		Steps:      steps,
	}
	if result.Err != nil {
		line.Error = result.Err.Error()
	}
	return util.AppendJSONLine(tracesFile(basePath, name, run), line)
}
