package config

import (
	"sync/atomic"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var parameterKeys = []string{
	_const.ParamSynchronizeAllJobs,
	_const.ParamRandomMaxStartTimeMs,
	_const.ParamLongOperationThresholdMs,
	_const.ParamEnforceRegistration,
}

type snapshot struct {
	bools  map[string]bool
	int64s map[string]int64
}

// Parameters 参数的只读快照，配置文件变化后整体替换，读取时不加锁
type Parameters struct {
	v    *viper.Viper
	snap atomic.Pointer[snapshot]
}

func newParameters(v *viper.Viper) *Parameters {
	p := &Parameters{v: v}
	p.reload()
	return p
}

func (p *Parameters) reload() {
	s := &snapshot{
		bools:  make(map[string]bool, len(parameterKeys)),
		int64s: make(map[string]int64, len(parameterKeys)),
	}
	for _, key := range parameterKeys {
		s.bools[key] = p.v.GetBool(key)
		s.int64s[key] = p.v.GetInt64(key)
	}
	p.snap.Store(s)
}

// Watch 监听配置文件，变化后重新加载参数
func (p *Parameters) Watch(onChange func()) {
	p.v.OnConfigChange(func(fsnotify.Event) {
		p.reload()
		if onChange != nil {
			onChange()
		}
	})
	p.v.WatchConfig()
}

func (p *Parameters) GetBool(key string) bool {
	return p.snap.Load().bools[key]
}

func (p *Parameters) GetInt64(key string) int64 {
	return p.snap.Load().int64s[key]
}
