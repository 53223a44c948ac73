package logger

// LogEntry is the envelope written for every event. Exactly one of the
// event fields is set.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`

	SessionStart *SessionStart `json:"session_start,omitempty"`
	SessionEnd   *SessionEnd   `json:"session_end,omitempty"`
	LoginAttempt *LoginAttempt `json:"login_attempt,omitempty"`
	CommandRun   *CommandRun   `json:"command_run,omitempty"`
	PipelineRun  *PipelineRun  `json:"pipeline_run,omitempty"`
	DirChange    *DirChange    `json:"dir_change,omitempty"`
}

// Event is implemented by every loggable event type.
type Event interface {
	attach(le *LogEntry)
}

// SessionStart records the creation of an execution session.
type SessionStart struct {
	WorkingDirectory string `json:"working_directory,omitempty"`
	Interactive      bool   `json:"interactive,omitempty"`
	EnvironSize      int    `json:"environ_size,omitempty"`
}

func (e *SessionStart) attach(le *LogEntry) { le.SessionStart = e }

// SessionEnd records the teardown of an execution session.
type SessionEnd struct {
	LastExitCode int `json:"last_exit_code"`
}

func (e *SessionEnd) attach(le *LogEntry) { le.SessionEnd = e }

// LoginAttempt records a connection to the SSH host.
type LoginAttempt struct {
	Success    bool   `json:"success"`
	Username   string `json:"username,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	Command    string `json:"command,omitempty"`
}

func (e *LoginAttempt) attach(le *LogEntry) { le.LoginAttempt = e }

// CommandRun records a single command invocation.
type CommandRun struct {
	Argv     []string `json:"argv,omitempty"`
	ExitCode int      `json:"exit_code"`
	Error    string   `json:"error,omitempty"`
}

func (e *CommandRun) attach(le *LogEntry) { le.CommandRun = e }

// PipelineRun records a pipeline invocation. StageStatuses holds every
// reaped status, including the non-terminal ones the exit code hides.
type PipelineRun struct {
	Stages        [][]string `json:"stages,omitempty"`
	StageStatuses []int      `json:"stage_statuses,omitempty"`
	ExitCode      int        `json:"exit_code"`
}

func (e *PipelineRun) attach(le *LogEntry) { le.PipelineRun = e }

// DirChange records a successful change of working directory.
type DirChange struct {
	Path string `json:"path,omitempty"`
}

func (e *DirChange) attach(le *LogEntry) { le.DirChange = e }
