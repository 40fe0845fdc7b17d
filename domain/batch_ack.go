package domain

// AckOutcome 消费方对一次批次确认的处理结论
type AckOutcome int

const (
	AckOK      AckOutcome = iota + 1 // 批次已完整加载
	AckIgnored                       // 批次被有意跳过，等同于成功但单独统计
	AckResend                        // 批次需要从头重新发送
	AckResume                        // 批次从出错的行继续发送
)

func (o AckOutcome) String() string {
	switch o {
	case AckOK:
		return "ok"
	case AckIgnored:
		return "ignored"
	case AckResend:
		return "resend"
	case AckResume:
		return "resume"
	default:
		return "unknown"
	}
}

// BatchAck 一次批次加载的结果，由加载方构造后发回给发送方，发送后不再修改
type BatchAck struct {
	BatchID int64 `json:"batchId"`
	// NodeID 完成加载的节点
	NodeID    string `json:"nodeId"`
	OK        bool   `json:"ok"`
	Resend    bool   `json:"resend,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	ErrorLine int64  `json:"errorLine,omitempty"`

	NetworkMillis  int64 `json:"networkMillis"`
	FilterMillis   int64 `json:"filterMillis"`
	DatabaseMillis int64 `json:"databaseMillis"`
	// StartTime 开始加载的时间，epoch毫秒
	StartTime int64 `json:"startTime"`
	ByteCount int64 `json:"byteCount"`

	// 只有加载失败且错误来自数据库时才有值
	SQLState   string `json:"sqlState,omitempty"`
	SQLCode    int    `json:"sqlCode,omitempty"`
	SQLMessage string `json:"sqlMessage,omitempty"`
}

// NewBatchAck 构造加载成功的确认
func NewBatchAck(batchID int64) *BatchAck {
	return &BatchAck{BatchID: batchID, OK: true}
}

// NewFailedBatchAck 构造在errorLine(从1开始)处加载失败的确认
func NewFailedBatchAck(batchID int64, errorLine int64) *BatchAck {
	return &BatchAck{BatchID: batchID, OK: false, ErrorLine: errorLine}
}

// SetSQLError 记录数据库层的错误信息
func (b *BatchAck) SetSQLError(state string, code int, message string) *BatchAck {
	b.SQLState = state
	b.SQLCode = code
	b.SQLMessage = message
	return b
}

// Outcome 按 OK -> Resend -> Ignored 的优先级给出处理结论
func (b *BatchAck) Outcome() AckOutcome {
	if b.OK {
		if b.Ignored {
			return AckIgnored
		}
		return AckOK
	}
	if b.Resend {
		return AckResend
	}
	return AckResume
}

// ResumeFrom 续传的起始行，不需要续传时返回0
func (b *BatchAck) ResumeFrom() int64 {
	if b.Outcome() != AckResume {
		return 0
	}
	return b.ErrorLine
}

// TotalMillis 三个阶段的耗时之和
func (b *BatchAck) TotalMillis() int64 {
	return b.NetworkMillis + b.FilterMillis + b.DatabaseMillis
}
