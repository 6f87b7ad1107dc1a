// Package logging provides the structured, leveled logger used by the
// replication connection and its tools.
//
// Messages carry key-value pairs and are written as text or JSON:
//
//	log := logging.New(logging.Config{Level: "info", Format: "json", Output: "stderr"})
//	connLog := log.WithFields("agreement", name, "connection_id", id)
//	connLog.Debug("search", "base", base, "filter", filter)
//
// Five levels exist. Trace follows a replication session call by call,
// Debug reports replication-level detail, Info, Warn and Error are for the
// operator. The level can be changed at run time with SetLevel; loggers
// derived through WithFields or WithRequestID follow their parent's level,
// which lets a watchdog raise verbosity for the whole process.
package logging
