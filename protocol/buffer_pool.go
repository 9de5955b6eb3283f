package protocol

import "sync"

// recvPool reuses receive buffers sized to hold any defined message.
// Every read path (demultiplexer, heartbeat drain, server loop) needs a
// MaxMessageSize scratch buffer; pooling keeps the hot receive path
// allocation-free.
var recvPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, MaxMessageSize)
		return &buf
	},
}

// GetRecvBuffer retrieves a MaxMessageSize buffer from the pool.
func GetRecvBuffer() *[]byte {
	return recvPool.Get().(*[]byte)
}

// PutRecvBuffer returns a buffer to the pool.
func PutRecvBuffer(buf *[]byte) {
	if buf == nil || cap(*buf) < MaxMessageSize {
		return
	}
	*buf = (*buf)[:MaxMessageSize]
	recvPool.Put(buf)
}
