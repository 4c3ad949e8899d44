package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the persisted record types. These are maintained by
// hand: the record set is small and flat, so the generator toolchain is
// more machinery than the three serializers are worth.
var (
	TaskMUS     = taskMUS{}
	DocumentMUS = documentMUS{}
	ChunkMUS    = chunkMUS{}
)

// Timestamps are stored as Unix microseconds.
func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

type taskMUS struct{}

func (taskMUS) Marshal(t Task, bs []byte) (n int) {
	n = ord.String.Marshal(t.Id, bs)
	n += ord.String.Marshal(t.DocumentId, bs[n:])
	n += ord.String.Marshal(string(t.Kind), bs[n:])
	n += ord.String.Marshal(string(t.Status), bs[n:])
	n += varint.Int.Marshal(t.Progress, bs[n:])
	n += ord.String.Marshal(t.Message, bs[n:])
	n += ord.String.Marshal(t.Error, bs[n:])
	n += marshalTime(t.CreatedAt, bs[n:])
	n += marshalTime(t.UpdatedAt, bs[n:])
	return n
}

func (taskMUS) Unmarshal(bs []byte) (t Task, n int, err error) {
	var n1 int
	if t.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if t.DocumentId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	var s string
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	t.Kind = TaskKind(s)
	n += n1
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	t.Status = TaskStatus(s)
	n += n1
	if t.Progress, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	if t.Message, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	if t.Error, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	if t.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	if t.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	return t, n, nil
}

func (taskMUS) Size(t Task) (size int) {
	size = ord.String.Size(t.Id)
	size += ord.String.Size(t.DocumentId)
	size += ord.String.Size(string(t.Kind))
	size += ord.String.Size(string(t.Status))
	size += varint.Int.Size(t.Progress)
	size += ord.String.Size(t.Message)
	size += ord.String.Size(t.Error)
	size += sizeTime(t.CreatedAt)
	size += sizeTime(t.UpdatedAt)
	return size
}

type documentMUS struct{}

func (documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = ord.String.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.Filename, bs[n:])
	n += ord.String.Marshal(string(d.FileType), bs[n:])
	n += varint.Int64.Marshal(d.FileSize, bs[n:])
	n += ord.String.Marshal(d.FileHash, bs[n:])
	n += ord.String.Marshal(string(d.Status), bs[n:])
	n += varint.Int.Marshal(d.ChunkCount, bs[n:])
	n += ord.String.Marshal(d.ErrorMessage, bs[n:])
	n += marshalTime(d.UploadDate, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	if d.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if d.Filename, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	var s string
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	d.FileType = FileType(s)
	n += n1
	if d.FileSize, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.FileHash, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	d.Status = TaskStatus(s)
	n += n1
	if d.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.ErrorMessage, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.UploadDate, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	return d, n, nil
}

func (documentMUS) Size(d Document) (size int) {
	size = ord.String.Size(d.Id)
	size += ord.String.Size(d.Filename)
	size += ord.String.Size(string(d.FileType))
	size += varint.Int64.Size(d.FileSize)
	size += ord.String.Size(d.FileHash)
	size += ord.String.Size(string(d.Status))
	size += varint.Int.Size(d.ChunkCount)
	size += ord.String.Size(d.ErrorMessage)
	size += sizeTime(d.UploadDate)
	return size
}

type chunkMUS struct{}

func (chunkMUS) Marshal(c Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(c.Id, bs)
	n += ord.String.Marshal(c.DocumentId, bs[n:])
	n += varint.Int.Marshal(c.ChunkIndex, bs[n:])
	n += ord.String.Marshal(c.Content, bs[n:])
	n += varint.Int.Marshal(c.PageNumber, bs[n:])
	return n
}

func (chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var n1 int
	if c.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if c.DocumentId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.PageNumber, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	return c, n, nil
}

func (chunkMUS) Size(c Chunk) (size int) {
	size = ord.String.Size(c.Id)
	size += ord.String.Size(c.DocumentId)
	size += varint.Int.Size(c.ChunkIndex)
	size += ord.String.Size(c.Content)
	size += varint.Int.Size(c.PageNumber)
	return size
}
