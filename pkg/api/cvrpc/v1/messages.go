package cvrpc

// Region 名字与 bridge.Region.Name() 一致
const (
	RegionInput          = "input"
	RegionChunks         = "chunks"
	RegionDataMap        = "datamap"
	RegionAddress        = "address"
	RegionEncodedAddress = "encoded_address"
)

type Empty struct{}

type SelfEncryptRequest struct {
	Length int `cbor:"1,keyasint"`
}

type AddressToURLResponse struct {
	Length int    `cbor:"1,keyasint"`
	URL    string `cbor:"2,keyasint"`
}

type WriteRegionRequest struct {
	Region string `cbor:"1,keyasint"`
	Offset int    `cbor:"2,keyasint"`
	Data   []byte `cbor:"3,keyasint"`
}

type ReadRegionRequest struct {
	Region string `cbor:"1,keyasint"`
	Offset int    `cbor:"2,keyasint"`
	Length int    `cbor:"3,keyasint"`
}

type ReadRegionResponse struct {
	Data []byte `cbor:"1,keyasint"`
}

type ByteForChunkRequest struct {
	Chunk int `cbor:"1,keyasint"`
	Byte  int `cbor:"2,keyasint"`
}

type ByteForChunkResponse struct {
	Value byte `cbor:"1,keyasint"`
}

// ScalarsResponse 是所有标量槽位的快照
type ScalarsResponse struct {
	ExitCode    byte  `cbor:"1,keyasint"`
	ChunkCount  int   `cbor:"2,keyasint"`
	DataMapSize int   `cbor:"3,keyasint"`
	ChunkSizes  []int `cbor:"4,keyasint"` // 只含前 ChunkCount 项
}

type PublishRequest struct {
	Label string `cbor:"1,keyasint,omitempty"`
}

type PublishResponse struct {
	ManifestAddress string `cbor:"1,keyasint"`
}

// InputFrame 是 LoadInput 流中的一帧
type InputFrame struct {
	Data []byte `cbor:"1,keyasint"`
}

type LoadInputResponse struct {
	Length int `cbor:"1,keyasint"`
}

type RestoreRequest struct {
	ManifestAddress string `cbor:"1,keyasint"`
}

// RestoreFrame 是 Restore 流中的一帧明文
type RestoreFrame struct {
	Data []byte `cbor:"1,keyasint"`
}
