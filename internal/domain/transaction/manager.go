package transaction

import "context"

// Manager 事务边界
// fn内通过ctx取得同一个事务，返回error时整体回滚
// 嵌套调用使用SAVEPOINT，内层失败只回滚内层
type Manager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
