package model

// Coordinates は地図表示用の緯度経度。
// Fallback はジオコーディングで結果が得られず既定座標を返したことを示す。
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Fallback  bool    `json:"fallback,omitempty"`
}

// DefaultCoordinates はジオコーディング失敗時に使用するホーチミン市中心部の座標。
var DefaultCoordinates = Coordinates{
	Latitude:  10.7769,
	Longitude: 106.7009,
}
