// 经纬度(WGS84)与局部东北天(ENU)坐标的转换
package coord

import "math"

const (
	wgs84A  = 6378137.0             // 长半轴
	wgs84F  = 1 / 298.257223563     // 扁率
	wgs84E2 = wgs84F * (2 - wgs84F) // 第一偏心率平方
)

// LocalENU 以原点为切点的局部东北天坐标系
type LocalENU struct {
	lon0, lat0, alt0 float64 // 原点（度，度，米）
	x0, y0, z0       float64 // 原点ECEF
	sinLat, cosLat   float64
	sinLon, cosLon   float64
}

// NewLocalENU 创建局部坐标系
// 参数：lon、lat-原点经纬度（度），alt-原点高程（米）
func NewLocalENU(lon, lat, alt float64) *LocalENU {
	e := &LocalENU{lon0: lon, lat0: lat, alt0: alt}
	e.x0, e.y0, e.z0 = geodeticToECEF(lon, lat, alt)
	radLat, radLon := lat*math.Pi/180, lon*math.Pi/180
	e.sinLat, e.cosLat = math.Sin(radLat), math.Cos(radLat)
	e.sinLon, e.cosLon = math.Sin(radLon), math.Cos(radLon)
	return e
}

// Origin 原点经纬度与高程
func (e *LocalENU) Origin() (lon, lat, alt float64) {
	return e.lon0, e.lat0, e.alt0
}

// ToENU 经纬度转局部坐标
func (e *LocalENU) ToENU(lon, lat, alt float64) (x, y, z float64) {
	px, py, pz := geodeticToECEF(lon, lat, alt)
	dx, dy, dz := px-e.x0, py-e.y0, pz-e.z0
	x = -e.sinLon*dx + e.cosLon*dy
	y = -e.sinLat*e.cosLon*dx - e.sinLat*e.sinLon*dy + e.cosLat*dz
	z = e.cosLat*e.cosLon*dx + e.cosLat*e.sinLon*dy + e.sinLat*dz
	return
}

// ToWGS84 局部坐标转经纬度
func (e *LocalENU) ToWGS84(x, y, z float64) (lon, lat, alt float64) {
	dx := -e.sinLon*x - e.sinLat*e.cosLon*y + e.cosLat*e.cosLon*z
	dy := e.cosLon*x - e.sinLat*e.sinLon*y + e.cosLat*e.sinLon*z
	dz := e.cosLat*y + e.sinLat*z
	return ecefToGeodetic(e.x0+dx, e.y0+dy, e.z0+dz)
}

func geodeticToECEF(lon, lat, alt float64) (x, y, z float64) {
	radLat, radLon := lat*math.Pi/180, lon*math.Pi/180
	sinLat := math.Sin(radLat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	x = (n + alt) * math.Cos(radLat) * math.Cos(radLon)
	y = (n + alt) * math.Cos(radLat) * math.Sin(radLon)
	z = (n*(1-wgs84E2) + alt) * sinLat
	return
}

// ecefToGeodetic 迭代求解纬度，5次迭代在地表附近已达到亚毫米精度
func ecefToGeodetic(x, y, z float64) (lon, lat, alt float64) {
	lon = math.Atan2(y, x)
	p := math.Hypot(x, y)
	radLat := math.Atan2(z, p*(1-wgs84E2))
	var n float64
	for range 5 {
		sinLat := math.Sin(radLat)
		n = wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		alt = p/math.Cos(radLat) - n
		radLat = math.Atan2(z, p*(1-wgs84E2*n/(n+alt)))
	}
	return lon * 180 / math.Pi, radLat * 180 / math.Pi, alt
}
