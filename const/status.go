package _const

// JobState Job调度句柄的生命周期状态，paused是正交的标记位，不属于状态
type JobState int

const (
	JobStateUnstarted JobState = 0x00000001 // 尚未安装调度句柄
	JobStateScheduled JobState = 0x00000002 // 调度句柄已安装
	JobStateStopped   JobState = 0x00000003 // 调度句柄已取消
)

func (s JobState) String() string {
	switch s {
	case JobStateUnstarted:
		return "Unstarted"
	case JobStateScheduled:
		return "Scheduled"
	case JobStateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
