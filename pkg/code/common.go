package code

// Internal
var (
	ErrorServerInternal = NewError(500, KindInternal, lang{en: "Internal server error", zh_cn: "服务器内部错误"})
	ErrorConfigLoad     = NewError(501, KindInternal, lang{en: "Failed to load configuration", zh_cn: "加载配置失败"})
	ErrorDBQuery        = NewError(502, KindInternal, lang{en: "Database query failed", zh_cn: "数据库查询失败"})
	ErrorFileSystem     = NewError(503, KindInternal, lang{en: "File system operation failed", zh_cn: "文件系统操作失败"})
	ErrorCompression    = NewError(504, KindInternal, lang{en: "Compression failed", zh_cn: "压缩失败"})
	ErrorEncryption     = NewError(505, KindInternal, lang{en: "Encryption failed", zh_cn: "加密失败"})
)

// Not found
var (
	ErrorBackupJobNotFound     = NewError(1001, KindNotFound, lang{en: "Backup job not found", zh_cn: "备份任务不存在"})
	ErrorBackupHistoryNotFound = NewError(1002, KindNotFound, lang{en: "Backup history not found", zh_cn: "备份记录不存在"})
	ErrorDatabaseNotFound      = NewError(1003, KindNotFound, lang{en: "Database profile not found", zh_cn: "数据库配置不存在"})
	ErrorCloudStorageNotFound  = NewError(1004, KindNotFound, lang{en: "Cloud storage config not found", zh_cn: "云存储配置不存在"})
	ErrorBackupFileNotFound    = NewError(1005, KindNotFound, lang{en: "Backup file not found", zh_cn: "备份文件不存在"})
)

// Access denied
var (
	ErrorAccessDenied = NewError(1101, KindAccessDenied, lang{en: "Access denied", zh_cn: "无权访问"})
)

// Already running
var (
	ErrorBackupAlreadyRunning = NewError(1201, KindAlreadyRunning, lang{en: "Backup is already running for this job", zh_cn: "该任务的备份正在运行中"})
)

// Validation
var (
	ErrorInvalidParams            = NewError(1301, KindValidation, lang{en: "Invalid parameters", zh_cn: "参数错误"})
	ErrorInvalidDatabaseType      = NewError(1302, KindValidation, lang{en: "Unsupported database type", zh_cn: "不支持的数据库类型"})
	ErrorInvalidStorageType       = NewError(1303, KindValidation, lang{en: "Unsupported storage type", zh_cn: "不支持的存储类型"})
	ErrorInvalidCronExpression    = NewError(1304, KindValidation, lang{en: "Invalid cron expression", zh_cn: "无效的 cron 表达式"})
	ErrorInvalidScheduleConfig    = NewError(1305, KindValidation, lang{en: "Invalid advanced schedule config", zh_cn: "无效的高级调度配置"})
	ErrorInvalidInput             = NewError(1306, KindValidation, lang{en: "Invalid input", zh_cn: "输入值不合法"})
	ErrorBackupNotRestorable      = NewError(1307, KindValidation, lang{en: "Only successful backups can be restored", zh_cn: "只能恢复成功的备份"})
	ErrorEncryptionKeyUnavailable = NewError(1308, KindValidation, lang{en: "Encryption key unavailable: the backup job that owns this encrypted backup was deleted", zh_cn: "加密密钥不可用：该加密备份所属的备份任务已被删除"})
	ErrorInvalidVerifyLevel       = NewError(1309, KindValidation, lang{en: "Invalid verification level", zh_cn: "无效的校验级别"})
)

// Connector
var (
	ErrorBackupFailed        = NewError(1401, KindConnector, lang{en: "Backup failed", zh_cn: "备份失败"})
	ErrorRestoreFailed       = NewError(1402, KindConnector, lang{en: "Restore failed", zh_cn: "恢复失败"})
	ErrorVerificationFailed  = NewError(1403, KindConnector, lang{en: "Backup verification failed", zh_cn: "备份校验失败"})
	ErrorCommandFailed       = NewError(1404, KindConnector, lang{en: "External command failed", zh_cn: "外部命令执行失败"})
	ErrorCommandTimeout      = NewError(1405, KindConnector, lang{en: "External command timed out", zh_cn: "外部命令执行超时"})
	ErrorStorageUploadFailed = NewError(1406, KindConnector, lang{en: "Upload to storage failed", zh_cn: "上传到存储失败"})
	ErrorStorageDownload     = NewError(1407, KindConnector, lang{en: "Download from storage failed", zh_cn: "从存储下载失败"})
	ErrorStorageDelete       = NewError(1408, KindConnector, lang{en: "Delete from storage failed", zh_cn: "从存储删除失败"})
	ErrorDatabaseConnect     = NewError(1409, KindConnector, lang{en: "Database connection failed", zh_cn: "数据库连接失败"})
)

// Decryption
var (
	ErrorDecryptionFailed = NewError(1501, KindDecryption, lang{en: "decryption failed - wrong password or corrupted file", zh_cn: "解密失败 - 密码错误或文件已损坏"})
)
