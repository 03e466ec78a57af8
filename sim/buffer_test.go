package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Buffer", func() {
	var (
		buf Buffer
	)

	BeforeEach(func() {
		buf = NewBuffer("Buf", 2)
	})

	It("should allow push and pop", func() {
		Expect(buf.Capacity()).To(Equal(2))
		Expect(buf.CanPush()).To(BeTrue())

		buf.Push(1)
		buf.Push(2)
		Expect(buf.CanPush()).To(BeFalse())
		Expect(buf.Size()).To(Equal(2))
		Expect(func() { buf.Push(3) }).To(Panic())

		Expect(buf.Peek()).To(Equal(1))
		Expect(buf.Pop()).To(Equal(1))
		Expect(buf.Pop()).To(Equal(2))
		Expect(buf.Size()).To(Equal(0))
		Expect(buf.Peek()).To(BeNil())
		Expect(buf.Pop()).To(BeNil())
	})

	It("should invoke hooks on push and pop", func() {
		var positions []*HookPos
		buf.AcceptHook(HookFunc(func(ctx HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		buf.Push(1)
		buf.Pop()

		Expect(positions).To(Equal([]*HookPos{HookPosBufPush, HookPosBufPop}))
	})

	It("should wrap around", func() {
		for i := 0; i < 5; i++ {
			buf.Push(i)
			buf.Push(i + 10)
			Expect(buf.Pop()).To(Equal(i))
			Expect(buf.Pop()).To(Equal(i + 10))
		}

		Expect(buf.Size()).To(BeZero())
	})

	It("should clear", func() {
		buf.Push(2)
		buf.Clear()

		Expect(buf.Size()).To(Equal(0))
		Expect(buf.Peek()).To(BeNil())
	})

	It("should reject invalid names", func() {
		Expect(func() { NewBuffer("bad name", 1) }).To(Panic())
		Expect(func() { NewBuffer("", 1) }).To(Panic())
	})
})
