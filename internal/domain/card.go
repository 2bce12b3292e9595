package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CardRecord 是记录集合（JSON 数组）中的一条卡牌记录。
//
// 约束：
// - 输入对象的全部字段按原始顺序保留；写回时不丢字段、不改顺序
// - 流水线只改写 pack 字段（SetPack），其他字段原样透传
type CardRecord struct {
	keys   []string
	fields map[string]json.RawMessage
}

// NewCardRecord 构造只含 id/name/pack 三个字段的记录（主要用于测试与合成数据）。
func NewCardRecord(id, name, pack string) CardRecord {
	var c CardRecord
	c.setString("id", id)
	c.setString("name", name)
	c.setString("pack", pack)
	return c
}

func (c *CardRecord) ID() string   { return c.str("id") }
func (c *CardRecord) Name() string { return c.str("name") }

// Pack 返回当前 pack 字段；字段缺失或不是字符串时返回空串。
func (c *CardRecord) Pack() string { return c.str("pack") }

// SetPack 改写 pack 字段；字段不存在时追加到末尾。
func (c *CardRecord) SetPack(p string) { c.setString("pack", p) }

func (c *CardRecord) str(key string) string {
	raw, ok := c.fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (c *CardRecord) setString(key, val string) {
	if c.fields == nil {
		c.fields = make(map[string]json.RawMessage, 4)
	}
	if _, ok := c.fields[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.fields[key] = encodeString(val)
}

// UnmarshalJSON 逐 token 读取对象，记录字段顺序。
func (c *CardRecord) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("卡牌记录必须是 JSON 对象，实际是 %v", tok)
	}

	keys := make([]string, 0, 8)
	fields := make(map[string]json.RawMessage, 8)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("非法字段名：%v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("字段 %q：%w", key, err)
		}
		if _, dup := fields[key]; !dup {
			keys = append(keys, key)
		}
		fields[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	c.keys = keys
	c.fields = fields
	if strings.TrimSpace(c.ID()) == "" {
		return errors.New("卡牌记录缺少 id 字段")
	}
	return nil
}

func (c CardRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(encodeString(k))
		buf.WriteByte(':')
		buf.Write(c.fields[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeString 与 json.Marshal 相同，但不转义 <>&（记录文件是给人看的，不是嵌入 HTML）。
func encodeString(s string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimRight(buf.Bytes(), "\n")
}
