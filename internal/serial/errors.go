package serial

import "fmt"

// TransportError 打开/写入/关闭失败，对当前会话是致命的
type TransportError struct {
	Op     string // open | write | read | close
	Device string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Device, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
