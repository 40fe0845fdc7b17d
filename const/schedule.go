package _const

// ScheduleType Job的调度方式
type ScheduleType int

const (
	ScheduleTypeCron     ScheduleType = 0x00000001 // cron表达式调度
	ScheduleTypeInterval ScheduleType = 0x00000002 // 固定间隔(毫秒)调度
)

func (s ScheduleType) String() string {
	switch s {
	case ScheduleTypeCron:
		return "CRON"
	case ScheduleTypeInterval:
		return "PERIODIC"
	default:
		return "Unknown"
	}
}

// ParseScheduleType 解析配置中的调度方式，未知值返回false
func ParseScheduleType(s string) (ScheduleType, bool) {
	switch s {
	case "cron", "CRON":
		return ScheduleTypeCron, true
	case "interval", "INTERVAL", "periodic", "PERIODIC":
		return ScheduleTypeInterval, true
	default:
		return 0, false
	}
}

// StartupType Job随引擎启动的方式
type StartupType int

const (
	StartupAutomatic StartupType = 0x00000001 // 引擎启动时自动调度
	StartupManual    StartupType = 0x00000002 // 只能由运维手动启动
	StartupDisabled  StartupType = 0x00000003 // 禁用
)

func (s StartupType) String() string {
	switch s {
	case StartupAutomatic:
		return "AUTOMATIC"
	case StartupManual:
		return "MANUAL"
	case StartupDisabled:
		return "DISABLED"
	default:
		return "Unknown"
	}
}

// ParseStartupType 解析配置中的启动方式，空值视为自动启动
func ParseStartupType(s string) (StartupType, bool) {
	switch s {
	case "", "automatic", "AUTOMATIC":
		return StartupAutomatic, true
	case "manual", "MANUAL":
		return StartupManual, true
	case "disabled", "DISABLED":
		return StartupDisabled, true
	default:
		return 0, false
	}
}
