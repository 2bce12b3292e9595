package domain

import (
	"encoding/json"
	"testing"
)

func TestCardRecord_PreservesFieldOrderAndUnknownFields(t *testing.T) {
	in := `{"id":"a1-001","name":"Bulbasaur","rarity":"◊","pack":"Every","health":70,"image":"https://x.test/a1-001.png"}`

	var c CardRecord
	if err := json.Unmarshal([]byte(in), &c); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.ID() != "a1-001" || c.Name() != "Bulbasaur" || c.Pack() != "Every" {
		t.Fatalf("字段读取不正确：id=%q name=%q pack=%q", c.ID(), c.Name(), c.Pack())
	}

	c.SetPack("Shared(Genetic Apex)")

	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	want := `{"id":"a1-001","name":"Bulbasaur","rarity":"◊","pack":"Shared(Genetic Apex)","health":70,"image":"https://x.test/a1-001.png"}`
	if string(b) != want {
		t.Fatalf("写回结果不一致：\n got=%s\nwant=%s", b, want)
	}
}

func TestCardRecord_MissingPackAppended(t *testing.T) {
	var c CardRecord
	if err := json.Unmarshal([]byte(`{"id":"a2-010","name":"X"}`), &c); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.Pack() != "" {
		t.Fatalf("缺失 pack 应返回空串，实际 %q", c.Pack())
	}
	c.SetPack("Mewtwo")
	b, _ := json.Marshal(c)
	if string(b) != `{"id":"a2-010","name":"X","pack":"Mewtwo"}` {
		t.Fatalf("pack 应追加到末尾：%s", b)
	}
}

func TestCardRecord_RejectsNonObjectOrMissingID(t *testing.T) {
	for _, in := range []string{`[]`, `"x"`, `{"name":"no id"}`} {
		var c CardRecord
		if err := json.Unmarshal([]byte(in), &c); err == nil {
			t.Fatalf("期望错误，但得到 nil：input=%s", in)
		}
	}
}

func TestRawPackLabel_SentinelsStayDistinct(t *testing.T) {
	if !LabelNull.IsSentinel() || LabelNull.Retryable() {
		t.Fatalf("null 是哨兵但不可重试")
	}
	if !LabelUnknown.Retryable() || !LabelError.Retryable() {
		t.Fatalf("Unknown/Error 应可重试")
	}
	if !SharedLabel(" Genetic Apex ").IsShared() || SharedLabel("Genetic Apex") != "Shared(Genetic Apex)" {
		t.Fatalf("SharedLabel 不符合预期：%q", SharedLabel(" Genetic Apex "))
	}
	if RawPackLabel("Mewtwo").IsSentinel() || RawPackLabel("Mewtwo").IsShared() {
		t.Fatalf("显式 pack 名不应被识别为哨兵/共享")
	}
}
