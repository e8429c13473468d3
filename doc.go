// Package netsetup 提供内存中的 P2P 拓扑模拟
//
// netsetup 构建并管理由节点（Peer）与有向连接（Connection）组成的拓扑，
// 用于在没有真实传输的情况下验证上层覆盖网络逻辑（成员管理、gossip、生成树）。
//
// # 核心概念
//
//   - Peer: 拓扑中的参与者，按规范 ID 唯一
//   - Connection: 两个节点之间的有向连接，同一有序端点对可以有多条
//   - Network: 生命周期协调器，把图的增删转化为实体的异步打开/关闭
//   - Setup: 按生成器或拓扑文件批量构建 Network
//
// # 快速开始
//
//	setup, err := netsetup.NewSetup(
//	    func(node *graph.Node) (netsetup.PeerResult, error) {
//	        return netsetup.PeerHandler(netsetup.HandlerFuncs{
//	            OpenFunc:  func(ctx context.Context) error { return nil },
//	            CloseFunc: func(ctx context.Context) error { return nil },
//	        }), nil
//	    },
//	    netsetup.DefaultConnectionFactory,
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer setup.Close(ctx)
//
//	network, err := setup.Complete(ctx, 3)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(len(network.Peers()), len(network.Connections())) // 3 3
//
// # 生命周期
//
//	┌──────────┐ Start/Open ┌─────────┐  ok   ┌──────┐ Close ┌─────────┐
//	│ Unopened │───────────▶│ Opening │──────▶│ Open │──────▶│ Closing │
//	└──────────┘            └─────────┘       └──────┘       └─────────┘
//	      │                      │ err                            │
//	      │ Close                ▼                                ▼
//	      │               ┌────────────┐  Close          ┌────────────────────┐
//	      └──────────────▶│ OpenFailed │────────────────▶│ Closed/CloseFailed │
//	                      └────────────┘                 └────────────────────┘
//
// Open 与 Close 都是幂等的：并发 Open 合并为一次 doOpen，重复 Close 只执行一次
// doClose，Close 排在进行中的 Open 之后。实体到达关闭终态后从图中移除自身。
//
// # 移除
//
// 显式关闭与移出图是对称的两条路径：
//
//	DeletePeer ──▶ Close ──▶ 关闭终态 ──▶ 移出图（级联移除关联连接）
//	Graph().RemoveNode ──▶ 移出图 ──▶ Close（关联连接各关闭一次）
//
// 两条路径依赖 Close 的幂等性汇合，副作用只发生一次。
//
// # 错误
//
// 契约错误（缺少工厂、ID 非法、工厂返回值不合法）在违反契约的调用上同步返回。
// doOpen/doClose 失败不会从触发变更的调用中抛出，而是通过 EvtLifecycleFailure
// 带外投递：
//
//	sub, _ := network.Subscribe(new(netsetup.EvtLifecycleFailure))
//	for evt := range sub.Out() {
//	    failure := evt.(netsetup.EvtLifecycleFailure)
//	    ...
//	}
//
// AddPeer/AddConnection 仍会把本实体的打开结果返回给调用方，但不会撤销已加入图的节点。
//
// # 约定
//
//   - 重新添加仍在图中（包括关闭中）的 ID 返回 ErrPeerExists
//   - 查询返回的端点 ID 始终是规范 ID
//   - 连接的端点必须已存在，否则返回 ErrPeerNotFound
package netsetup
