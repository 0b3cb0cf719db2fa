package input

import (
	"os"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
)

// mapIDs 地图ID集合，用于场景引用检查
type mapIDs struct {
	drivingLaneIDs map[int32]struct{} // 机动车道ID集合
}

func newMapIDs(m *mapv2.Map) mapIDs {
	ids := mapIDs{drivingLaneIDs: make(map[int32]struct{})}
	for _, v := range m.Lanes {
		if v.Type == mapv2.LaneType_LANE_TYPE_DRIVING {
			ids.drivingLaneIDs[v.Id] = struct{}{}
		}
	}
	return ids
}

// FilterScene 剔除引用不存在行车道的位置与出入口
// 说明：被剔除位置上的输入/输出区域与路线组在初始化时会因找不到位置而失效
func FilterScene(scene *config.Scene, m *mapv2.Map) *config.Scene {
	ids := newMapIDs(m)
	scene.Locations = lo.Filter(scene.Locations, func(l config.Location, _ int) bool {
		if l.Lane == nil {
			return true
		}
		if _, ok := ids.drivingLaneIDs[l.Lane.LaneID]; !ok {
			log.Warnf("ignore location %d due to bad lane %d", l.ID, l.Lane.LaneID)
			return false
		}
		return true
	})
	filterCover := func(owner string, id int32, cover []int32) []int32 {
		return lo.Filter(cover, func(laneID int32, _ int) bool {
			_, ok := ids.drivingLaneIDs[laneID]
			if !ok {
				log.Warnf("%s %d: ignore bad cover lane %d", owner, id, laneID)
			}
			return ok
		})
	}
	for i := range scene.VehInputs {
		scene.VehInputs[i].Cover = filterCover("veh input", scene.VehInputs[i].ID, scene.VehInputs[i].Cover)
	}
	for i := range scene.VehExits {
		scene.VehExits[i].Cover = filterCover("veh exit", scene.VehExits[i].ID, scene.VehExits[i].Cover)
	}
	return scene
}

// preCheckCache 预检查缓存目录
// 功能：验证输入缓存目录的有效性，决定是否启用缓存功能
// 参数：cacheDir-缓存目录路径
// 返回：true表示启用缓存，false表示禁用缓存
func preCheckCache(cacheDir string) bool {
	if cacheDir == "" {
		log.Info("disable input cache")
		return false
	} else {
		if stat, err := os.Stat(cacheDir); err == nil && stat.IsDir() {
			log.Infof("enable input cache at %s", cacheDir)
			return true
		} else {
			log.Errorf("disable input cache because invalid dir %s (not exist or file)", cacheDir)
			return false
		}
	}
}
