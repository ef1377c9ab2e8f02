package utils

import (
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// TimeLayout 是工程化数据表中规范化时间戳的统一格式
const TimeLayout = "2006-01-02 15:04:05"

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// HasColumn 判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// ParseTime 解析规范化后的时间戳元素，NA或空值返回零值时间
func ParseTime(e series.Element) (time.Time, error) {
	if e.IsNA() || e.String() == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, e.String())
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
