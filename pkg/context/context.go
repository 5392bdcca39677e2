package context

import "context"

type ContextKey string

var (
	ScrapIDKey    = ContextKey("X-Scrap-Id")
	PlatformIDKey = ContextKey("X-Platform-Id")
	WorkerIDKey   = ContextKey("X-Worker-Id")
	PassKey       = ContextKey("X-Pass")
	JobIDKey      = ContextKey("X-Job-Id")
)

func SetScrapID(ctx context.Context, scrapID int64) context.Context {
	return context.WithValue(ctx, ScrapIDKey, scrapID)
}

func GetScrapID(ctx context.Context) int64 {
	value, ok := ctx.Value(ScrapIDKey).(int64)
	if !ok {
		return 0
	}
	return value
}

func SetPlatformID(ctx context.Context, platformID int64) context.Context {
	return context.WithValue(ctx, PlatformIDKey, platformID)
}

func GetPlatformID(ctx context.Context) int64 {
	value, ok := ctx.Value(PlatformIDKey).(int64)
	if !ok {
		return 0
	}
	return value
}

func SetWorkerID(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, WorkerIDKey, workerID)
}

func GetWorkerID(ctx context.Context) string {
	value, ok := ctx.Value(WorkerIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetPass(ctx context.Context, pass int) context.Context {
	return context.WithValue(ctx, PassKey, pass)
}

func GetPass(ctx context.Context) int {
	value, ok := ctx.Value(PassKey).(int)
	if !ok {
		return 0
	}
	return value
}

func SetJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

func GetJobID(ctx context.Context) string {
	value, ok := ctx.Value(JobIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

// LogFields returns the identifiers carried by ctx, for use with logger.WithFields.
func LogFields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	if id := GetScrapID(ctx); id != 0 {
		fields["scrap_id"] = id
	}
	if id := GetPlatformID(ctx); id != 0 {
		fields["platform_id"] = id
	}
	if id := GetWorkerID(ctx); id != "" {
		fields["worker_id"] = id
	}
	if pass := GetPass(ctx); pass != 0 {
		fields["pass"] = pass
	}
	if id := GetJobID(ctx); id != "" {
		fields["job_id"] = id
	}
	return fields
}
