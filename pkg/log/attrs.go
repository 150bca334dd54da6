package log

import "log/slog"

func GraphID[T ~string](id T) slog.Attr {
	return slog.String("graph_id", string(id))
}

func ThreadID[T ~string](id T) slog.Attr {
	return slog.String("thread_id", string(id))
}

func Node[T ~string](name T) slog.Attr {
	return slog.String("node", string(name))
}

func CheckpointID[T ~string](id T) slog.Attr {
	return slog.String("checkpoint_id", string(id))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
