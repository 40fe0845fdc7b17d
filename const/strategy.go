package _const

// 参数名称，由参数服务在每次调度时实时读取
const (
	// ParamSynchronizeAllJobs 为true时进程内所有Job串行执行
	ParamSynchronizeAllJobs = "job.synchronize_all_jobs"
	// ParamRandomMaxStartTimeMs 周期Job首次启动的最大随机延迟
	ParamRandomMaxStartTimeMs = "job.random_max_start_time_ms"
	// ParamLongOperationThresholdMs 单次执行超过该耗时会上报统计
	ParamLongOperationThresholdMs = "job.long_operation_threshold_ms"
	// ParamEnforceRegistration 为true时未注册节点不执行需要注册的Job
	ParamEnforceRegistration = "job.registration.enforce"
)

const (
	DefaultMaxJitterMs              int64 = 10000
	DefaultLongOperationThresholdMs int64 = 30000
	// DefaultLimiter 调度池默认的并发执行上限
	DefaultLimiter int64 = 20
)

// InfiniteLockServerID 无限期锁的持有者标识，持有该锁的Job在集群范围内被禁用
const InfiniteLockServerID = "STOPPED"
