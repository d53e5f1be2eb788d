package logger

// 统一的日志字段命名常量
// 用于确保整个项目中日志字段命名的一致性，便于日志查询和分析
const (
	// FieldUID 用户 ID 字段
	FieldUID = "uid"

	// FieldJobID 备份任务 ID 字段
	FieldJobID = "jobId"

	// FieldHistoryID 备份记录 ID 字段
	FieldHistoryID = "historyId"

	// FieldDatabaseID 数据库配置 ID 字段
	FieldDatabaseID = "databaseId"

	// FieldEngine 数据库引擎字段
	FieldEngine = "engine"

	// FieldStorage 存储类型字段
	FieldStorage = "storage"

	// FieldAction 操作类型字段
	FieldAction = "action"

	// FieldPath 文件路径字段
	FieldPath = "path"

	// FieldDuration 耗时字段
	FieldDuration = "duration"

	// FieldMethod 方法名称字段
	FieldMethod = "method"

	// FieldError 错误信息字段
	FieldError = "error"

	// FieldSize 文件大小字段
	FieldSize = "size"

	// FieldBucket 存储桶名称字段
	FieldBucket = "bucket"

	// FieldFileKey 文件键字段
	FieldFileKey = "fileKey"

	// FieldNextRunAt 下次运行时间字段
	FieldNextRunAt = "nextRunAt"
)
