package netsetup

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand/v2"

	"github.com/dep2p/go-netsetup/config"
	"github.com/dep2p/go-netsetup/internal/core/metrics"
	"github.com/dep2p/go-netsetup/internal/discovery/mmst"
	"github.com/dep2p/go-netsetup/pkg/generator"
)

// MMSTIDLen MMST 拓扑的节点 ID 字节数
const MMSTIDLen = 32

// MMST 逐个加入 size 个随机 ID 的节点，每个节点加入后执行一次生成树发现
//
// 节点 ID 以十六进制字符串为规范形式。cfg.Seed 非 0 时 ID 与随机决策均可复现。
func (s *Setup) MMST(ctx context.Context, size int, cfg config.MMSTConfig) (*Network, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: mmst size %d", generator.ErrInvalidArgument, size)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n, err := s.newNetwork(WithIDFunc(HexID))
	if err != nil {
		return nil, err
	}

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	host := mmstHost{n: n}

	for i := 0; i < size; i++ {
		id := randomID(rng)
		if _, err := n.AddPeer(ctx, id, nil); err != nil {
			return n, err
		}
		m, err := mmst.New(id, host, lookupPeers(n, rng), cfg, mmst.WithRand(rng))
		if err != nil {
			return n, err
		}
		if err := m.Run(ctx); err != nil {
			return n, fmt.Errorf("mmst peer %x: %w", id, err)
		}
	}

	metrics.LogSnapshot(log, n.Snapshot())
	return n, nil
}

func randomID(rng *rand.Rand) []byte {
	id := make([]byte, MMSTIDLen)
	for i := 0; i < MMSTIDLen; i += 8 {
		binary.BigEndian.PutUint64(id[i:], rng.Uint64())
	}
	return id
}

// lookupPeers 以随机顺序产出网络中现有的节点 ID
func lookupPeers(n *Network, rng *rand.Rand) mmst.LookupFunc {
	return func(context.Context) <-chan []byte {
		peers := n.Peers()
		ids := make([][]byte, 0, len(peers))
		for _, p := range peers {
			s, ok := p.ID().(string)
			if !ok {
				continue
			}
			if id, err := hex.DecodeString(s); err == nil {
				ids = append(ids, id)
			}
		}
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

		ch := make(chan []byte, len(ids))
		for _, id := range ids {
			ch <- id
		}
		close(ch)
		return ch
	}
}

// mmstHost 将 Network 适配为生成树插件的宿主
type mmstHost struct {
	n *Network
}

var _ mmst.Host = mmstHost{}

func (h mmstHost) HasPeer(id []byte) bool { return h.n.HasPeer(id) }

func (h mmstHost) ConnectionCount(id []byte) int { return h.n.ConnectionCount(id) }

func (h mmstHost) Connect(ctx context.Context, from, to []byte) (mmst.Conn, error) {
	conn, err := h.n.AddConnection(ctx, from, to, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
