package api

// Credentials identify the caller of a request.
type Credentials struct {
	Uid    uint32
	Gid    uint32
	Groups []uint32
}

func (x *Credentials) appendWire(b []byte) []byte {
	e := encoder{b}
	e.varint(1, uint64(x.Uid))
	e.varint(2, uint64(x.Gid))
	e.packed(3, x.Groups)
	return e.b
}

func (x *Credentials) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) error {
		switch f.num {
		case 1:
			x.Uid = f.uint32()
		case 2:
			x.Gid = f.uint32()
		case 3:
			vs, err := f.uint32s()
			if err != nil {
				return err
			}
			x.Groups = append(x.Groups, vs...)
		}
		return nil
	})
}

// FileTime is a point in time with nanosecond resolution.
type FileTime struct {
	Seconds int64
	Nano    int32
}

func (x *FileTime) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, x.Seconds)
	e.int64(2, int64(x.Nano))
	return e.b
}

func (x *FileTime) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) error {
		switch f.num {
		case 1:
			x.Seconds = f.int64()
		case 2:
			x.Nano = f.int32()
		}
		return nil
	})
}

// FileAttributes is the attribute sheet of an object.
type FileAttributes struct {
	Type       FileType
	Mode       uint32
	Nlink      uint32
	Uid        uint32
	Gid        uint32
	Size       uint64
	RdevMajor  uint32
	RdevMinor  uint32
	Fsid       uint64
	Fileid     uint64
	Atime      *FileTime
	Mtime      *FileTime
	Ctime      *FileTime
	Generation uint64
}

func (x *FileAttributes) appendWire(b []byte) []byte {
	e := encoder{b}
	e.varint(1, uint64(x.Type))
	e.varint(2, uint64(x.Mode))
	e.varint(3, uint64(x.Nlink))
	e.varint(4, uint64(x.Uid))
	e.varint(5, uint64(x.Gid))
	e.varint(6, x.Size)
	e.varint(7, uint64(x.RdevMajor))
	e.varint(8, uint64(x.RdevMinor))
	e.varint(9, x.Fsid)
	e.varint(10, x.Fileid)
	if x.Atime != nil {
		e.message(11, x.Atime)
	}
	if x.Mtime != nil {
		e.message(12, x.Mtime)
	}
	if x.Ctime != nil {
		e.message(13, x.Ctime)
	}
	e.varint(14, x.Generation)
	return e.b
}

func (x *FileAttributes) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) error {
		switch f.num {
		case 1:
			x.Type = FileType(f.int32())
		case 2:
			x.Mode = f.uint32()
		case 3:
			x.Nlink = f.uint32()
		case 4:
			x.Uid = f.uint32()
		case 5:
			x.Gid = f.uint32()
		case 6:
			x.Size = f.uint64()
		case 7:
			x.RdevMajor = f.uint32()
		case 8:
			x.RdevMinor = f.uint32()
		case 9:
			x.Fsid = f.uint64()
		case 10:
			x.Fileid = f.uint64()
		case 11:
			x.Atime = new(FileTime)
			return x.Atime.unmarshalWire(f.raw)
		case 12:
			x.Mtime = new(FileTime)
			return x.Mtime.unmarshalWire(f.raw)
		case 13:
			x.Ctime = new(FileTime)
			return x.Ctime.unmarshalWire(f.raw)
		case 14:
			x.Generation = f.uint64()
		}
		return nil
	})
}

// DirEntry is one entry of a ReadDir reply.
type DirEntry struct {
	FileId     uint64
	Name       string
	Cookie     uint64
	FileHandle []byte
	Attributes *FileAttributes
}

func (x *DirEntry) appendWire(b []byte) []byte {
	e := encoder{b}
	e.varint(1, x.FileId)
	e.string(2, x.Name)
	e.varint(3, x.Cookie)
	e.bytes(4, x.FileHandle)
	if x.Attributes != nil {
		e.message(5, x.Attributes)
	}
	return e.b
}

func (x *DirEntry) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) error {
		switch f.num {
		case 1:
			x.FileId = f.uint64()
		case 2:
			x.Name = f.string()
		case 3:
			x.Cookie = f.uint64()
		case 4:
			x.FileHandle = f.bytes()
		case 5:
			x.Attributes = new(FileAttributes)
			return x.Attributes.unmarshalWire(f.raw)
		}
		return nil
	})
}

// decodeCredentials decodes an embedded Credentials field.
func decodeCredentials(f field) (*Credentials, error) {
	c := new(Credentials)
	return c, c.unmarshalWire(f.raw)
}

// decodeAttributes decodes an embedded FileAttributes field.
func decodeAttributes(f field) (*FileAttributes, error) {
	a := new(FileAttributes)
	return a, a.unmarshalWire(f.raw)
}

type GetRootHandleRequest struct {
	Credentials *Credentials
}

func (x *GetRootHandleRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.credentials(1, x.Credentials)
	return e.b
}

func (x *GetRootHandleRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		if f.num == 1 {
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type GetRootHandleResponse struct {
	Status     Status
	FileHandle []byte
	Attributes *FileAttributes
}

func (x *GetRootHandleResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	e.bytes(2, x.FileHandle)
	e.attributes(3, x.Attributes)
	return e.b
}

func (x *GetRootHandleResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.Status = Status(f.int32())
		case 2:
			x.FileHandle = f.bytes()
		case 3:
			x.Attributes, err = decodeAttributes(f)
		}
		return err
	})
}

type GetAttrRequest struct {
	FileHandle  []byte
	Credentials *Credentials
}

func (x *GetAttrRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.FileHandle)
	e.credentials(2, x.Credentials)
	return e.b
}

func (x *GetAttrRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.FileHandle = f.bytes()
		case 2:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type GetAttrResponse struct {
	Status     Status
	Attributes *FileAttributes
}

func (x *GetAttrResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	e.attributes(2, x.Attributes)
	return e.b
}

func (x *GetAttrResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.Status = Status(f.int32())
		case 2:
			x.Attributes, err = decodeAttributes(f)
		}
		return err
	})
}

type LookupRequest struct {
	DirectoryHandle []byte
	Name            string
	Credentials     *Credentials
}

func (x *LookupRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.DirectoryHandle)
	e.string(2, x.Name)
	e.credentials(3, x.Credentials)
	return e.b
}

func (x *LookupRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.DirectoryHandle = f.bytes()
		case 2:
			x.Name = f.string()
		case 3:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type LookupResponse struct {
	Status              Status
	FileHandle          []byte
	Attributes          *FileAttributes
	DirectoryAttributes *FileAttributes
}

func (x *LookupResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	e.bytes(2, x.FileHandle)
	e.attributes(3, x.Attributes)
	e.attributes(4, x.DirectoryAttributes)
	return e.b
}

func (x *LookupResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.Status = Status(f.int32())
		case 2:
			x.FileHandle = f.bytes()
		case 3:
			x.Attributes, err = decodeAttributes(f)
		case 4:
			x.DirectoryAttributes, err = decodeAttributes(f)
		}
		return err
	})
}

type ReadDirRequest struct {
	DirectoryHandle []byte
	Cookie          uint64
	CookieVerifier  uint64
	Count           uint32
	Credentials     *Credentials
}

func (x *ReadDirRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.DirectoryHandle)
	e.varint(2, x.Cookie)
	e.varint(3, x.CookieVerifier)
	e.varint(4, uint64(x.Count))
	e.credentials(5, x.Credentials)
	return e.b
}

func (x *ReadDirRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.DirectoryHandle = f.bytes()
		case 2:
			x.Cookie = f.uint64()
		case 3:
			x.CookieVerifier = f.uint64()
		case 4:
			x.Count = f.uint32()
		case 5:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type ReadDirResponse struct {
	Status              Status
	Entries             []*DirEntry
	CookieVerifier      uint64
	Eof                 bool
	DirectoryAttributes *FileAttributes
}

func (x *ReadDirResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	for _, entry := range x.Entries {
		e.message(2, entry)
	}
	e.varint(3, x.CookieVerifier)
	e.bool(4, x.Eof)
	e.attributes(5, x.DirectoryAttributes)
	return e.b
}

func (x *ReadDirResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.Status = Status(f.int32())
		case 2:
			entry := new(DirEntry)
			if err := entry.unmarshalWire(f.raw); err != nil {
				return err
			}
			x.Entries = append(x.Entries, entry)
		case 3:
			x.CookieVerifier = f.uint64()
		case 4:
			x.Eof = f.bool()
		case 5:
			x.DirectoryAttributes, err = decodeAttributes(f)
		}
		return err
	})
}

type MkdirRequest struct {
	DirectoryHandle []byte
	Name            string
	Attributes      *FileAttributes
	Credentials     *Credentials
}

func (x *MkdirRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.DirectoryHandle)
	e.string(2, x.Name)
	e.attributes(3, x.Attributes)
	e.credentials(4, x.Credentials)
	return e.b
}

func (x *MkdirRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.DirectoryHandle = f.bytes()
		case 2:
			x.Name = f.string()
		case 3:
			x.Attributes, err = decodeAttributes(f)
		case 4:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type MkdirResponse struct {
	Status     Status
	FileHandle []byte
	Attributes *FileAttributes
}

func (x *MkdirResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	e.bytes(2, x.FileHandle)
	e.attributes(3, x.Attributes)
	return e.b
}

func (x *MkdirResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.Status = Status(f.int32())
		case 2:
			x.FileHandle = f.bytes()
		case 3:
			x.Attributes, err = decodeAttributes(f)
		}
		return err
	})
}

type RemoveRequest struct {
	DirectoryHandle []byte
	Name            string
	Credentials     *Credentials
}

func (x *RemoveRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.DirectoryHandle)
	e.string(2, x.Name)
	e.credentials(3, x.Credentials)
	return e.b
}

func (x *RemoveRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.DirectoryHandle = f.bytes()
		case 2:
			x.Name = f.string()
		case 3:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type RemoveResponse struct {
	Status Status
}

func (x *RemoveResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	return e.b
}

func (x *RemoveResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) error {
		if f.num == 1 {
			x.Status = Status(f.int32())
		}
		return nil
	})
}

type ReadlinkRequest struct {
	FileHandle  []byte
	Credentials *Credentials
}

func (x *ReadlinkRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.FileHandle)
	e.credentials(2, x.Credentials)
	return e.b
}

func (x *ReadlinkRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.FileHandle = f.bytes()
		case 2:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type ReadlinkResponse struct {
	Status     Status
	Target     string
	Attributes *FileAttributes
}

func (x *ReadlinkResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	e.string(2, x.Target)
	e.attributes(3, x.Attributes)
	return e.b
}

func (x *ReadlinkResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.Status = Status(f.int32())
		case 2:
			x.Target = f.string()
		case 3:
			x.Attributes, err = decodeAttributes(f)
		}
		return err
	})
}

type AccessRequest struct {
	FileHandle  []byte
	Access      uint32
	Credentials *Credentials
}

func (x *AccessRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.FileHandle)
	e.varint(2, uint64(x.Access))
	e.credentials(3, x.Credentials)
	return e.b
}

func (x *AccessRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.FileHandle = f.bytes()
		case 2:
			x.Access = f.uint32()
		case 3:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type AccessResponse struct {
	Status     Status
	Access     uint32
	Attributes *FileAttributes
}

func (x *AccessResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	e.varint(2, uint64(x.Access))
	e.attributes(3, x.Attributes)
	return e.b
}

func (x *AccessResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.Status = Status(f.int32())
		case 2:
			x.Access = f.uint32()
		case 3:
			x.Attributes, err = decodeAttributes(f)
		}
		return err
	})
}

type ReadRequest struct {
	FileHandle  []byte
	Offset      uint64
	Count       uint32
	Credentials *Credentials
}

func (x *ReadRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.FileHandle)
	e.varint(2, x.Offset)
	e.varint(3, uint64(x.Count))
	e.credentials(4, x.Credentials)
	return e.b
}

func (x *ReadRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.FileHandle = f.bytes()
		case 2:
			x.Offset = f.uint64()
		case 3:
			x.Count = f.uint32()
		case 4:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type ReadResponse struct {
	Status     Status
	Data       []byte
	Eof        bool
	Attributes *FileAttributes
}

func (x *ReadResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	e.bytes(2, x.Data)
	e.bool(3, x.Eof)
	e.attributes(4, x.Attributes)
	return e.b
}

func (x *ReadResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.Status = Status(f.int32())
		case 2:
			x.Data = f.bytes()
		case 3:
			x.Eof = f.bool()
		case 4:
			x.Attributes, err = decodeAttributes(f)
		}
		return err
	})
}

type WriteRequest struct {
	FileHandle  []byte
	Offset      uint64
	Data        []byte
	Stability   uint32
	Credentials *Credentials
}

func (x *WriteRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.FileHandle)
	e.varint(2, x.Offset)
	e.bytes(3, x.Data)
	e.varint(4, uint64(x.Stability))
	e.credentials(5, x.Credentials)
	return e.b
}

func (x *WriteRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.FileHandle = f.bytes()
		case 2:
			x.Offset = f.uint64()
		case 3:
			x.Data = f.bytes()
		case 4:
			x.Stability = f.uint32()
		case 5:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type WriteResponse struct {
	Status     Status
	Count      uint32
	Stability  uint32
	Verifier   uint64
	Attributes *FileAttributes
}

func (x *WriteResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	e.varint(2, uint64(x.Count))
	e.varint(3, uint64(x.Stability))
	e.varint(4, x.Verifier)
	e.attributes(5, x.Attributes)
	return e.b
}

func (x *WriteResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.Status = Status(f.int32())
		case 2:
			x.Count = f.uint32()
		case 3:
			x.Stability = f.uint32()
		case 4:
			x.Verifier = f.uint64()
		case 5:
			x.Attributes, err = decodeAttributes(f)
		}
		return err
	})
}

type CreateRequest struct {
	DirectoryHandle []byte
	Name            string
	Attributes      *FileAttributes
	Mode            CreateMode
	Credentials     *Credentials
}

func (x *CreateRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.DirectoryHandle)
	e.string(2, x.Name)
	e.attributes(3, x.Attributes)
	e.int64(4, int64(x.Mode))
	e.credentials(5, x.Credentials)
	return e.b
}

func (x *CreateRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.DirectoryHandle = f.bytes()
		case 2:
			x.Name = f.string()
		case 3:
			x.Attributes, err = decodeAttributes(f)
		case 4:
			x.Mode = CreateMode(f.int32())
		case 5:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type CreateResponse struct {
	Status     Status
	FileHandle []byte
	Attributes *FileAttributes
}

func (x *CreateResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	e.bytes(2, x.FileHandle)
	e.attributes(3, x.Attributes)
	return e.b
}

func (x *CreateResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.Status = Status(f.int32())
		case 2:
			x.FileHandle = f.bytes()
		case 3:
			x.Attributes, err = decodeAttributes(f)
		}
		return err
	})
}

type RenameRequest struct {
	FromDirHandle []byte
	FromName      string
	ToDirHandle   []byte
	ToName        string
	Credentials   *Credentials
}

func (x *RenameRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.FromDirHandle)
	e.string(2, x.FromName)
	e.bytes(3, x.ToDirHandle)
	e.string(4, x.ToName)
	e.credentials(5, x.Credentials)
	return e.b
}

func (x *RenameRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.FromDirHandle = f.bytes()
		case 2:
			x.FromName = f.string()
		case 3:
			x.ToDirHandle = f.bytes()
		case 4:
			x.ToName = f.string()
		case 5:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type RenameResponse struct {
	Status Status
}

func (x *RenameResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	return e.b
}

func (x *RenameResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) error {
		if f.num == 1 {
			x.Status = Status(f.int32())
		}
		return nil
	})
}

type SetAttrRequest struct {
	FileHandle  []byte
	Attributes  *FileAttributes
	Credentials *Credentials
}

func (x *SetAttrRequest) appendWire(b []byte) []byte {
	e := encoder{b}
	e.bytes(1, x.FileHandle)
	e.attributes(2, x.Attributes)
	e.credentials(3, x.Credentials)
	return e.b
}

func (x *SetAttrRequest) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.FileHandle = f.bytes()
		case 2:
			x.Attributes, err = decodeAttributes(f)
		case 3:
			x.Credentials, err = decodeCredentials(f)
		}
		return err
	})
}

type SetAttrResponse struct {
	Status     Status
	Attributes *FileAttributes
}

func (x *SetAttrResponse) appendWire(b []byte) []byte {
	e := encoder{b}
	e.int64(1, int64(x.Status))
	e.attributes(2, x.Attributes)
	return e.b
}

func (x *SetAttrResponse) unmarshalWire(b []byte) error {
	return consumeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			x.Status = Status(f.int32())
		case 2:
			x.Attributes, err = decodeAttributes(f)
		}
		return err
	})
}
