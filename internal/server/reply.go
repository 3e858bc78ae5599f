package server

import (
	"strconv"

	"github.com/tidwall/redcon"

	"github.com/keydcore/keyd/internal/command"
)

// writeReply renders a protocol-agnostic command.Reply as RESP2, the only
// wire version this deployment speaks.
func writeReply(conn redcon.Conn, r command.Reply) {
	switch r.Kind {
	case command.ReplyStatus:
		conn.WriteString(r.Status)
	case command.ReplyError:
		conn.WriteError(r.Err.Error())
	case command.ReplyInteger:
		conn.WriteInt64(r.Int)
	case command.ReplyBulk:
		conn.WriteBulkString(r.Bulk)
	case command.ReplyNullBulk:
		conn.WriteNull()
	case command.ReplyNullArray:
		conn.WriteArray(-1)
	case command.ReplyDouble:
		conn.WriteBulkString(strconv.FormatFloat(r.Double, 'g', -1, 64))
	case command.ReplyArray:
		writeArray(conn, r.Array)
	default:
		conn.WriteError("ERR internal: unrenderable reply")
	}
}

func writeArray(conn redcon.Conn, items []command.Reply) {
	if items == nil {
		conn.WriteArray(-1)
		return
	}
	conn.WriteArray(len(items))
	for _, item := range items {
		writeReply(conn, item)
	}
}
