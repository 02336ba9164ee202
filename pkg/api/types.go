// Package api defines the messages and the gRPC service of the handle-based
// file service.
package api

import "strconv"

// Status is the result code carried by every response.
type Status int32

const (
	Status_OK              Status = 0
	Status_ERR_PERM        Status = 1
	Status_ERR_NOENT       Status = 2
	Status_ERR_IO          Status = 5
	Status_ERR_ACCES       Status = 13
	Status_ERR_EXIST       Status = 17
	Status_ERR_NOTDIR      Status = 20
	Status_ERR_ISDIR       Status = 21
	Status_ERR_INVAL       Status = 22
	Status_ERR_NAMETOOLONG Status = 63
	Status_ERR_NOTEMPTY    Status = 66
	Status_ERR_STALE       Status = 70
	Status_ERR_BADHANDLE   Status = 10001
	Status_ERR_BAD_COOKIE  Status = 10003
	Status_ERR_NOTSUPP     Status = 10004
	Status_ERR_SERVERFAULT Status = 10006
)

var statusNames = map[Status]string{
	Status_OK:              "OK",
	Status_ERR_PERM:        "ERR_PERM",
	Status_ERR_NOENT:       "ERR_NOENT",
	Status_ERR_IO:          "ERR_IO",
	Status_ERR_ACCES:       "ERR_ACCES",
	Status_ERR_EXIST:       "ERR_EXIST",
	Status_ERR_NOTDIR:      "ERR_NOTDIR",
	Status_ERR_ISDIR:       "ERR_ISDIR",
	Status_ERR_INVAL:       "ERR_INVAL",
	Status_ERR_NAMETOOLONG: "ERR_NAMETOOLONG",
	Status_ERR_NOTEMPTY:    "ERR_NOTEMPTY",
	Status_ERR_STALE:       "ERR_STALE",
	Status_ERR_BADHANDLE:   "ERR_BADHANDLE",
	Status_ERR_BAD_COOKIE:  "ERR_BAD_COOKIE",
	Status_ERR_NOTSUPP:     "ERR_NOTSUPP",
	Status_ERR_SERVERFAULT: "ERR_SERVERFAULT",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// FileType follows the NFSv3 ftype3 numbering.
type FileType int32

const (
	FileType_UNKNOWN   FileType = 0
	FileType_REGULAR   FileType = 1
	FileType_DIRECTORY FileType = 2
	FileType_BLOCK     FileType = 3
	FileType_CHAR      FileType = 4
	FileType_SYMLINK   FileType = 5
	FileType_SOCKET    FileType = 6
	FileType_FIFO      FileType = 7
)

var fileTypeNames = map[FileType]string{
	FileType_UNKNOWN:   "UNKNOWN",
	FileType_REGULAR:   "REGULAR",
	FileType_DIRECTORY: "DIRECTORY",
	FileType_BLOCK:     "BLOCK",
	FileType_CHAR:      "CHAR",
	FileType_SYMLINK:   "SYMLINK",
	FileType_SOCKET:    "SOCKET",
	FileType_FIFO:      "FIFO",
}

func (t FileType) String() string {
	if name, ok := fileTypeNames[t]; ok {
		return name
	}
	return "FileType(" + strconv.Itoa(int(t)) + ")"
}

// CreateMode selects the exclusivity of Create.
type CreateMode int32

const (
	CreateMode_UNCHECKED CreateMode = 0
	CreateMode_GUARDED   CreateMode = 1
	CreateMode_EXCLUSIVE CreateMode = 2
)

// Write stability levels.
const (
	StabilityUnstable uint32 = 0
	StabilityDataSync uint32 = 1
	StabilityFileSync uint32 = 2
)

// Access bits of AccessRequest.Access.
const (
	AccessRead    uint32 = 0x0001
	AccessLookup  uint32 = 0x0002
	AccessModify  uint32 = 0x0004
	AccessExtend  uint32 = 0x0008
	AccessDelete  uint32 = 0x0010
	AccessExecute uint32 = 0x0020
)
