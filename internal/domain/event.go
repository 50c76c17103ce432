package domain

// EventKind 事件类型
// The webhook only delivers success/failure; booked_in, qa_pass and connected
// are recorded by the warehouse booking/QA flows through the ops endpoint.
type EventKind string

const (
	EventSuccess   EventKind = "success"
	EventFailure   EventKind = "failure"
	EventConnected EventKind = "connected"
	EventBookedIn  EventKind = "booked_in"
	EventQAPass    EventKind = "qa_pass"
)

// WebhookKinds 擦除 webhook 允许的事件类型
var WebhookKinds = map[EventKind]bool{
	EventSuccess: true,
	EventFailure: true,
}

// OpsKinds 运维端点允许的事件类型
var OpsKinds = map[EventKind]bool{
	EventBookedIn:  true,
	EventQAPass:    true,
	EventConnected: true,
}

// DeviceType 设备类别
type DeviceType string

const (
	DeviceLaptopsDesktops DeviceType = "laptops_desktops"
	DeviceServers         DeviceType = "servers"
	DeviceMacs            DeviceType = "macs"
	DeviceMobiles         DeviceType = "mobiles"
	DeviceLooseDrives     DeviceType = "loose_drives"
)

// KnownDeviceTypes 合法的设备类别集合
var KnownDeviceTypes = map[DeviceType]bool{
	DeviceLaptopsDesktops: true,
	DeviceServers:         true,
	DeviceMacs:            true,
	DeviceMobiles:         true,
	DeviceLooseDrives:     true,
}

// RawEvent 一条擦除/设备生命周期事件
// Immutable once admitted; rollups are always derivable from this table.
type RawEvent struct {
	EventID          string `json:"event_id"`          // UUID
	JobID            string `json:"job_id"`            // 厂家 job 标识（去重键的一半）
	Kind             EventKind `json:"event_kind"`
	OccurredAt       int64  `json:"occurred_at"`       // Unix 时间戳（秒，UTC）
	Date             string `json:"date"`              // YYYY-MM-DD（报表时区）
	Month            string `json:"month"`             // YYYY-MM（报表时区）
	DeviceType       string `json:"device_type"`
	EngineerInitials string `json:"engineer_initials"` // 可为空
	DurationSeconds  int64  `json:"duration_seconds"`
	ErrorKind        string `json:"error_kind"`        // 仅 failure 事件携带

	// 设备描述字段（可为空，来自 payload 别名或厂家 API 回查）
	Manufacturer      string `json:"manufacturer"`
	Model             string `json:"model"`
	SystemSerial      string `json:"system_serial"`
	DiskSerial        string `json:"disk_serial"`
	DiskCapacityBytes int64  `json:"disk_capacity_bytes"`
	DriveCount        int    `json:"drive_count"`
	DriveType         string `json:"drive_type"`

	CreatedAt int64 `json:"created_at"` // 入库时间（Unix 时间戳，秒）
}

// SeenIdentity 去重台账：某个 (job_id, event_kind) 已经产生过 RawEvent
type SeenIdentity struct {
	JobID       string    `json:"job_id"`
	Kind        EventKind `json:"event_kind"`
	FirstSeenAt int64     `json:"first_seen_at"`
}

// DailyRollup 按天汇总（派生数据，随时可由 RawEvent 重建）
type DailyRollup struct {
	Date     string `json:"date"`
	BookedIn int    `json:"booked_in"`
	Erased   int    `json:"erased"`
	QA       int    `json:"qa"`
}

// EngineerRollup 按 (天, 工程师) 汇总成功擦除数
type EngineerRollup struct {
	Date             string `json:"date"`
	EngineerInitials string `json:"engineer_initials"`
	Erased           int    `json:"count"`
}

// EngineerDeviceRollup 按 (天, 工程师, 设备类别) 汇总成功擦除数
type EngineerDeviceRollup struct {
	Date             string `json:"date"`
	EngineerInitials string `json:"engineer_initials"`
	DeviceType       string `json:"device_type"`
	Erased           int    `json:"count"`
}
