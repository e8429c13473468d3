// Package mmst 实现近似最小生成树（mostly-minimal spanning tree）节点发现
//
// # 算法
//
// 每个新加入的节点执行一次 Run：
//
//  1. 采样：在 LookupTimeout 内从 Lookup 读取至多 SampleSize 个候选 ID
//  2. 排序：按与自身 ID 的 XOR 距离从近到远排序
//  3. 连接：连接最近的候选；目标已满（ErrMaxPeers）时依次尝试下一个
//  4. 冗余：以 PercentFar 的概率额外连接最远的候选，降低分区概率
//
// # 容量
//
// 目标节点连接数超过 MaxPeers 时拒绝新的入向连接：刚建立的连接立即关闭，
// 返回 ErrMaxPeers。
//
// # 宿主接口
//
// 插件只通过 Host 访问协调器：Connect 驱动 AddConnection，ConnectionCount
// 用作容量查询，HasPeer 用于过滤已离开的候选。
package mmst
