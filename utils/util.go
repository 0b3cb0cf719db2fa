package utils

// Find 按ID列表从索引中取出数据，保持ids的顺序
// 返回：找到的数据与不存在的ID；ids为空时返回全部数据
func Find[K comparable, T any](index map[K]T, all []T, ids []K) (found []T, missing []K) {
	if len(ids) == 0 {
		return all, nil
	}
	found = make([]T, 0, len(ids))
	for _, id := range ids {
		if d, ok := index[id]; ok {
			found = append(found, d)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}
