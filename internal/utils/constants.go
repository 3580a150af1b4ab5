package utils

// EmptyString represents a reusable empty string constant.
const EmptyString = ""

// ErrorLogFormat defines the formatting string for error log messages.
const ErrorLogFormat = "Error: %v"

// ConfigFileName is the configuration file looked up globally and locally.
const ConfigFileName = "config.yaml"

// GlobalConfigDirectoryName is the directory under the user's home holding global state.
const GlobalConfigDirectoryName = ".mtc"

// LedgerFileName is the default SQLite ledger file inside GlobalConfigDirectoryName.
const LedgerFileName = "ledger.db"

// LoggerInitializationFailedMessageFormat reports a logger that could not be built.
const LoggerInitializationFailedMessageFormat = "failed to initialize logger: %v"

// ApplicationExecutionFailedMessage prefixes the fatal error of a failed run.
const ApplicationExecutionFailedMessage = "application execution failed"
