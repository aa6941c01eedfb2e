package client

import (
	"slices"
	"time"
)

// Profile は名前付きのベンチマーク設定
type Profile struct {
	Name        string
	Description string
	Duration    time.Duration
	Config      Config
}

// ReadHeavyProfile は監視クライアントを想定したRead中心の負荷
func ReadHeavyProfile() Profile {
	c := DefaultConfig()
	c.WriteRatio = 0.05
	c.BrowseRatio = 0.05
	return Profile{
		Name:        "read-heavy",
		Description: "Mostly value reads, as a monitoring client would issue",
		Duration:    10 * time.Second,
		Config:      c,
	}
}

// WriteHeavyProfile はデータ収集を想定したWrite中心の負荷
func WriteHeavyProfile() Profile {
	c := DefaultConfig()
	c.WriteRatio = 0.8
	c.BrowseRatio = 0
	return Profile{
		Name:        "write-heavy",
		Description: "Mostly value writes, as a data collector would issue",
		Duration:    10 * time.Second,
		Config:      c,
	}
}

// BrowseProfile は参照索引に負荷をかける
func BrowseProfile() Profile {
	c := DefaultConfig()
	c.WriteRatio = 0.1
	c.BrowseRatio = 0.8
	c.NodeCount = 1000
	return Profile{
		Name:        "browse",
		Description: "Browse-dominated load over a larger node set",
		Duration:    10 * time.Second,
		Config:      c,
	}
}

// StressProfile は多数のワーカーで混在負荷をかける
func StressProfile() Profile {
	c := DefaultConfig()
	c.NumWorkers = 64
	c.NodeCount = 10000
	return Profile{
		Name:        "stress",
		Description: "Mixed load with many workers and nodes",
		Duration:    20 * time.Second,
		Config:      c,
	}
}

// QuickProfile は動作確認用の短時間の負荷
func QuickProfile() Profile {
	c := DefaultConfig()
	c.NumWorkers = 4
	c.NodeCount = 10
	return Profile{
		Name:        "quick",
		Description: "Short mixed run for verification",
		Duration:    2 * time.Second,
		Config:      c,
	}
}

var profiles = map[string]func() Profile{
	"read-heavy":  ReadHeavyProfile,
	"write-heavy": WriteHeavyProfile,
	"browse":      BrowseProfile,
	"stress":      StressProfile,
	"quick":       QuickProfile,
}

// GetProfile は名前からプロファイルを取得する
func GetProfile(name string) (Profile, bool) {
	if fn, ok := profiles[name]; ok {
		return fn(), true
	}
	return Profile{}, false
}

// ListProfiles は利用可能なプロファイル名をソートして返す
func ListProfiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
