package input

import (
	"context"
	"fmt"
	"os"

	"git.fiblab.net/general/common/v2/cache"
	"git.fiblab.net/general/common/v2/mongoutil"
	"git.fiblab.net/general/common/v2/protoutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v2"
)

// Input 输入数据
// 功能：存储仿真所需的地图与交通流场景
type Input struct {
	Map   *mapv2.Map
	Scene *config.Scene
}

// Init 下载数据
// 功能：根据配置初始化并加载地图与场景
// 参数：config-配置对象，cacheDir-缓存目录
// 返回：加载完成的输入数据指针
// 算法说明：
// 1. 缓存检查：验证缓存目录的有效性
// 2. 数据库连接：如果配置了MongoDB则建立连接
// 3. 地图数据加载：文件优先，其次MongoDB（带缓存）
// 4. 场景加载：YAML文件优先，其次MongoDB中的BSON文档
// 5. 场景检查：剔除引用了不存在车道的位置
func Init(config config.Config, cacheDir string) (res *Input) {
	useCache := preCheckCache(cacheDir)
	if !useCache {
		cacheDir = ""
	}

	var client *mongo.Client
	if config.Input.URI != "" {
		client = mongoutil.NewClient(config.Input.URI)
		defer client.Disconnect(context.Background())
	}

	res = &Input{}
	if config.Input.Map.File != "" {
		var m mapv2.Map
		if err := protoutil.UnmarshalFromFile(&m, config.Input.Map.File); err != nil {
			log.Panicf("failed to load map from file: %v", err)
		}
		res.Map = &m
	} else {
		m, err := loadMap(client, config.Input.Map, cacheDir)
		if err != nil {
			log.Panicf("failed to load map: %v", err)
		}
		res.Map = m
	}

	if config.Input.Scene == nil {
		log.Warn("no scene configured, traffic flow generation is disabled")
		res.Scene = &Scene{}
		return
	}
	scene, err := LoadScene(client, *config.Input.Scene)
	if err != nil {
		log.Panicf("failed to load scene: %v", err)
	}
	res.Scene = FilterScene(scene, res.Map)
	return
}

// Scene 场景别名，便于调用方只依赖input包
type Scene = config.Scene

// LoadScene 加载交通流场景
// 参数：client-MongoDB客户端（仅文件加载时可为nil），inputPath-场景来源
// 返回：场景与错误
func LoadScene(client *mongo.Client, inputPath config.InputPath) (*config.Scene, error) {
	var scene config.Scene
	if inputPath.File != "" {
		data, err := os.ReadFile(inputPath.File)
		if err != nil {
			return nil, fmt.Errorf("read scene file %s: %w", inputPath.File, err)
		}
		if err := yaml.UnmarshalStrict(data, &scene); err != nil {
			return nil, fmt.Errorf("parse scene file %s: %w", inputPath.File, err)
		}
		return &scene, nil
	}
	if client == nil {
		return nil, fmt.Errorf("scene %s.%s requires input.uri", inputPath.DB, inputPath.Col)
	}
	coll := client.Database(inputPath.GetDb()).Collection(inputPath.GetColl())
	log.Infof("start fetching scene from %s.%s", inputPath.DB, inputPath.Col)
	if err := coll.FindOne(context.Background(), bson.D{}).Decode(&scene); err != nil {
		return nil, fmt.Errorf("decode scene from %s.%s: %w", inputPath.DB, inputPath.Col, err)
	}
	log.Infof("finish fetching scene from %s.%s", inputPath.DB, inputPath.Col)
	return &scene, nil
}

// loadMap 从MongoDB下载地图，启用缓存时优先读取本地pb文件
func loadMap(client *mongo.Client, path config.InputPath, cacheDir string) (*mapv2.Map, error) {
	var download func() *mapv2.Map
	if !path.OnlyCache {
		if client == nil {
			return nil, fmt.Errorf("map %s.%s requires input.uri", path.DB, path.Col)
		}
		coll := mongoutil.GetMongoColl(client, path)
		download = func() *mapv2.Map {
			m, errs := mongoutil.DownloadPbFromMongo[mapv2.Map, *mapv2.Map](context.Background(), coll, nil, nil)
			for _, err := range errs {
				log.Errorf("download map: %v", err)
			}
			if len(errs) > 0 {
				log.Panicf("failed to download map from %s.%s", path.DB, path.Col)
			}
			return m
		}
	}
	log.Infof("start fetching map from %s.%s", path.DB, path.Col)
	m, err := cache.LoadWithCache(cacheDir, path, download)
	if err != nil {
		return nil, fmt.Errorf("load map with cache: %w", err)
	}
	log.Infof("finish fetching map: %d lanes, %d roads, %d junctions", len(m.Lanes), len(m.Roads), len(m.Junctions))
	return m, nil
}
