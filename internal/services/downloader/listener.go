package downloader

import "github.com/gcottom/yt-dl-queue/pkg/youtube"

// Listener receives orchestrator events. Every method is called on the
// orchestrator loop; implementations must not call back into the Service
// synchronously.
type Listener interface {
	OnTaskCreated(task TaskView)
	OnTaskQueuePositionChanged(taskID string, position int)
	OnTaskStateChanged(taskID string, state State, message string)
	OnTaskProgress(taskID string, update Update)
	OnTaskInfo(taskID string, info *youtube.Info)
	OnStatsChanged(total, succeeded, running, queued int)
	OnNetworkAdvisory(taskID string, message string)
}

// Listeners fans events out in order.
type Listeners []Listener

func (l Listeners) OnTaskCreated(task TaskView) {
	for _, x := range l {
		x.OnTaskCreated(task)
	}
}

func (l Listeners) OnTaskQueuePositionChanged(taskID string, position int) {
	for _, x := range l {
		x.OnTaskQueuePositionChanged(taskID, position)
	}
}

func (l Listeners) OnTaskStateChanged(taskID string, state State, message string) {
	for _, x := range l {
		x.OnTaskStateChanged(taskID, state, message)
	}
}

func (l Listeners) OnTaskProgress(taskID string, update Update) {
	for _, x := range l {
		x.OnTaskProgress(taskID, update)
	}
}

func (l Listeners) OnTaskInfo(taskID string, info *youtube.Info) {
	for _, x := range l {
		x.OnTaskInfo(taskID, info)
	}
}

func (l Listeners) OnStatsChanged(total, succeeded, running, queued int) {
	for _, x := range l {
		x.OnStatsChanged(total, succeeded, running, queued)
	}
}

func (l Listeners) OnNetworkAdvisory(taskID string, message string) {
	for _, x := range l {
		x.OnNetworkAdvisory(taskID, message)
	}
}

type nopListener struct{}

func (nopListener) OnTaskCreated(TaskView) {}
func (nopListener) OnTaskQueuePositionChanged(string, int) {}
func (nopListener) OnTaskStateChanged(string, State, string) {}
func (nopListener) OnTaskProgress(string, Update) {}
func (nopListener) OnTaskInfo(string, *youtube.Info) {}
func (nopListener) OnStatsChanged(int, int, int, int) {}
func (nopListener) OnNetworkAdvisory(string, string) {}
