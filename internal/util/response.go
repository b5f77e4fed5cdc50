package util

type Envelope map[string]any

func Error(message string) Envelope {
	return Envelope{"error": message}
}

func Data(key string, value any) Envelope {
	return Envelope{key: value}
}

// ErrorWithReason is used where the client needs a machine-readable category
// next to the human message.
func ErrorWithReason(message, reason string) Envelope {
	return Envelope{"error": message, "reason": reason}
}
