package generator

import (
	"math/rand/v2"
)

// DefaultSeed WattsStrogatz 在 seed 为 0 时使用的种子
const DefaultSeed uint64 = 42

// Ladder 梯形图：两条长度为 steps 的路径，对应节点相连
//
// 节点 0..steps-1 为第一排，steps..2*steps-1 为第二排。
func Ladder(steps int) (Graph, error) {
	if steps < 1 {
		return Graph{}, invalid("ladder steps %d", steps)
	}
	return ladder(steps).graph(), nil
}

func ladder(n int) *builder {
	b := newBuilder()
	for i := 0; i < n-1; i++ {
		b.addLink(i, i+1)
		b.addLink(n+i, n+i+1)
		b.addLink(i, n+i)
	}
	b.addLink(n-1, 2*n-1)
	return b
}

// CircularLadder 首尾相接的梯形图
func CircularLadder(steps int) (Graph, error) {
	if steps < 1 {
		return Graph{}, invalid("circular ladder steps %d", steps)
	}
	b := ladder(steps)
	b.addLink(0, steps-1)
	b.addLink(steps, 2*steps-1)
	return b.graph(), nil
}

// Complete 完全图，i<j 时连边 i->j
func Complete(n int) (Graph, error) {
	if n < 1 {
		return Graph{}, invalid("complete graph size %d", n)
	}
	b := newBuilder()
	if n == 1 {
		b.addNode(0)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			b.addLink(i, j)
		}
	}
	return b.graph(), nil
}

// CompleteBipartite 完全二部图，左侧 0..n-1 指向右侧 n..n+m-1
func CompleteBipartite(n, m int) (Graph, error) {
	if n < 1 || m < 1 {
		return Graph{}, invalid("complete bipartite %dx%d", n, m)
	}
	b := newBuilder()
	for i := 0; i < n; i++ {
		for j := n; j < n+m; j++ {
			b.addLink(i, j)
		}
	}
	return b.graph(), nil
}

// Path 路径 0->1->...->n-1
func Path(n int) (Graph, error) {
	if n < 1 {
		return Graph{}, invalid("path length %d", n)
	}
	b := newBuilder()
	b.addNode(0)
	for i := 1; i < n; i++ {
		b.addLink(i-1, i)
	}
	return b.graph(), nil
}

// Grid n×m 网格，节点 i+j*n 指向其左侧与上方的邻居
func Grid(n, m int) (Graph, error) {
	if n < 1 || m < 1 {
		return Graph{}, invalid("grid %dx%d", n, m)
	}
	b := newBuilder()
	if n == 1 && m == 1 {
		b.addNode(0)
		return b.graph(), nil
	}
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			node := i + j*n
			if i > 0 {
				b.addLink(node, i-1+j*n)
			}
			if j > 0 {
				b.addLink(node, i+(j-1)*n)
			}
		}
	}
	return b.graph(), nil
}

// Grid3 n×m×z 三维网格
func Grid3(n, m, z int) (Graph, error) {
	if n < 1 || m < 1 || z < 1 {
		return Graph{}, invalid("grid3 %dx%dx%d", n, m, z)
	}
	b := newBuilder()
	if n == 1 && m == 1 && z == 1 {
		b.addNode(0)
		return b.graph(), nil
	}
	for k := 0; k < z; k++ {
		level := k * n * m
		for i := 0; i < n; i++ {
			for j := 0; j < m; j++ {
				node := i + j*n + level
				if i > 0 {
					b.addLink(node, i-1+j*n+level)
				}
				if j > 0 {
					b.addLink(node, i+(j-1)*n+level)
				}
				if k > 0 {
					b.addLink(node, i+j*n+(k-1)*n*m)
				}
			}
		}
	}
	return b.graph(), nil
}

// BalancedBinTree 深度为 depth 的满二叉树，根节点 ID 为 1，节点 r 指向 2r 与 2r+1
func BalancedBinTree(depth int) (Graph, error) {
	if depth < 0 {
		return Graph{}, invalid("binary tree depth %d", depth)
	}
	b := newBuilder()
	if depth == 0 {
		b.addNode(1)
	}
	count := 1 << depth
	for root := 1; root < count; root++ {
		b.addLink(root, root*2)
		b.addLink(root, root*2+1)
	}
	return b.graph(), nil
}

// NoLinks n 个孤立节点
func NoLinks(n int) (Graph, error) {
	if n < 0 {
		return Graph{}, invalid("node count %d", n)
	}
	b := newBuilder()
	for i := 0; i < n; i++ {
		b.addNode(i)
	}
	return b.graph(), nil
}

// CliqueCircle cliqueCount 个大小为 cliqueSize 的团首尾相连成环
func CliqueCircle(cliqueCount, cliqueSize int) (Graph, error) {
	if cliqueCount < 1 || cliqueSize < 1 {
		return Graph{}, invalid("clique circle %dx%d", cliqueCount, cliqueSize)
	}
	b := newBuilder()
	for c := 0; c < cliqueCount; c++ {
		from := c * cliqueSize
		for i := 0; i < cliqueSize; i++ {
			b.addNode(from + i)
		}
		for i := 0; i < cliqueSize; i++ {
			for j := i + 1; j < cliqueSize; j++ {
				b.addLink(from+i, from+j)
			}
		}
		if c > 0 {
			b.addLink(from, from-1)
		}
	}
	b.addLink(0, len(b.nodes)-1)
	return b.graph(), nil
}

// WattsStrogatz 小世界网络
//
// 先构造每个节点连向后 k/2 个邻居的环格，再以概率 p 将每条边的终点重连到
// 随机节点。k 必须为偶数且小于 n。相同 seed 得到相同结果，seed 为 0 时使用 DefaultSeed。
func WattsStrogatz(n, k int, p float64, seed uint64) (Graph, error) {
	if n < 1 || k < 0 || k >= n || k%2 != 0 {
		return Graph{}, invalid("watts-strogatz n=%d k=%d: k should be even and less than n", n, k)
	}
	if p < 0 || p > 1 {
		return Graph{}, invalid("watts-strogatz p=%v", p)
	}
	if seed == 0 {
		seed = DefaultSeed
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	b := newBuilder()
	for i := 0; i < n; i++ {
		b.addNode(i)
	}
	half := k / 2
	for j := 1; j <= half; j++ {
		for i := 0; i < n; i++ {
			b.addLink(i, (i+j)%n)
		}
	}

	for j := 1; j <= half; j++ {
		for i := 0; i < n; i++ {
			if rng.Float64() >= p {
				continue
			}
			if b.outDegree(i) == n-1 {
				continue
			}
			newTo := rng.IntN(n)
			for newTo == i || b.hasLink(i, newTo) {
				newTo = rng.IntN(n)
			}
			b.removeLink(i, (i+j)%n)
			b.addLink(i, newTo)
		}
	}
	return b.graph(), nil
}
