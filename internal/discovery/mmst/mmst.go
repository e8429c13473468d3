package mmst

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-netsetup/config"
	"github.com/dep2p/go-netsetup/internal/util/logger"
)

var log = logger.Logger("discovery/mmst")

var (
	// ErrMaxPeers 目标节点连接数已达上限
	ErrMaxPeers = errors.New("mmst: max peers reached")

	// ErrInvalidID 节点 ID 为空
	ErrInvalidID = errors.New("mmst: invalid id")

	// ErrNilHost 未提供宿主
	ErrNilHost = errors.New("mmst: nil host")
)

// Conn 插件建立的连接
type Conn interface {
	Close(ctx context.Context) error
}

// Host 插件对协调器的最小依赖
type Host interface {
	// HasPeer 节点是否仍在拓扑中
	HasPeer(id []byte) bool

	// ConnectionCount 节点当前连接数
	ConnectionCount(id []byte) int

	// Connect 建立 from → to 的连接并等待其打开
	Connect(ctx context.Context, from, to []byte) (Conn, error)
}

// LookupFunc 产出有限的候选 ID 序列，ctx 取消后应停止发送并关闭 channel
type LookupFunc func(ctx context.Context) <-chan []byte

// Option MMST 选项
type Option func(*MMST)

// WithClock 使用给定时钟计时查找超时
func WithClock(c clock.Clock) Option {
	return func(m *MMST) {
		m.clock = c
	}
}

// WithRand 使用给定随机源决定是否连接最远候选
func WithRand(r *rand.Rand) Option {
	return func(m *MMST) {
		m.rng = r
	}
}

// MMST 单个节点的生成树发现
type MMST struct {
	id     []byte
	host   Host
	lookup LookupFunc
	cfg    config.MMSTConfig

	clock clock.Clock
	rng   *rand.Rand
}

// New 创建节点 id 的发现实例
func New(id []byte, host Host, lookup LookupFunc, cfg config.MMSTConfig, opts ...Option) (*MMST, error) {
	if len(id) == 0 {
		return nil, ErrInvalidID
	}
	if host == nil {
		return nil, ErrNilHost
	}
	if lookup == nil {
		return nil, fmt.Errorf("mmst: nil lookup")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &MMST{
		id:     id,
		host:   host,
		lookup: lookup,
		cfg:    cfg,
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return m, nil
}

// ID 返回节点 ID
func (m *MMST) ID() []byte { return m.id }

// Run 采样候选并建立连接
//
// 所有候选都已满时节点保持孤立，返回 nil。
func (m *MMST) Run(ctx context.Context) error {
	candidates, err := m.sample(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		log.Debug("没有候选节点", "id", short(m.id))
		return nil
	}
	SortByDistance(m.id, candidates)

	closest, err := m.connectClosest(ctx, candidates)
	if err != nil {
		return err
	}
	if closest == nil {
		log.Warn("所有候选节点均已满", "id", short(m.id), "candidates", len(candidates))
		return nil
	}

	far := candidates[len(candidates)-1]
	if bytes.Equal(far, closest) || m.rng.Float64() >= m.cfg.PercentFar {
		return nil
	}
	if err := m.connect(ctx, far); err != nil {
		if errors.Is(err, ErrMaxPeers) {
			log.Debug("最远候选已满", "id", short(m.id), "far", short(far))
			return nil
		}
		return err
	}
	return nil
}

// connectClosest 按距离依次尝试，返回连上的候选
func (m *MMST) connectClosest(ctx context.Context, candidates [][]byte) ([]byte, error) {
	for _, c := range candidates {
		err := m.connect(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrMaxPeers) {
			return nil, err
		}
		log.Debug("候选节点已满", "id", short(m.id), "candidate", short(c))
	}
	return nil, nil
}

func (m *MMST) connect(ctx context.Context, to []byte) error {
	conn, err := m.host.Connect(ctx, m.id, to)
	if err != nil {
		return err
	}
	if m.host.ConnectionCount(to) > m.cfg.MaxPeers {
		if cerr := conn.Close(ctx); cerr != nil {
			log.Debug("关闭超额连接失败", "to", short(to), "err", cerr)
		}
		return fmt.Errorf("%w: %s", ErrMaxPeers, short(to))
	}
	log.Debug("已连接", "from", short(m.id), "to", short(to))
	return nil
}

// sample 在超时内读取至多 SampleSize 个不重复的候选
func (m *MMST) sample(ctx context.Context) ([][]byte, error) {
	lookupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := m.clock.Timer(m.cfg.LookupTimeout.Duration())
	defer timer.Stop()

	ch := m.lookup(lookupCtx)
	seen := make(map[string]struct{})
	out := make([][]byte, 0, m.cfg.SampleSize)
	for len(out) < m.cfg.SampleSize {
		select {
		case id, ok := <-ch:
			if !ok {
				return out, nil
			}
			if len(id) == 0 || bytes.Equal(id, m.id) || !m.host.HasPeer(id) {
				continue
			}
			if _, dup := seen[string(id)]; dup {
				continue
			}
			seen[string(id)] = struct{}{}
			out = append(out, id)
		case <-timer.C:
			log.Debug("查找超时", "id", short(m.id), "sampled", len(out))
			return out, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func short(id []byte) string {
	if len(id) > 4 {
		id = id[:4]
	}
	return fmt.Sprintf("%x", id)
}
