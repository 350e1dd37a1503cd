package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("producer", func() {
	Context("write", func() {
		It("writes successfully", func() {
			w := newTestWriter()
			kp := NewEventProducer(w, WithOutputTopic("activity"))
			defer kp.Close()

			err := kp.Write(context.TODO(), DocumentMessageKind, "doc-1", bytes.NewReader([]byte(`{"a":1}`)))
			Expect(err).To(BeNil())
			err = kp.Write(context.TODO(), AccountMessageKind, "acc-1", bytes.NewReader([]byte(`{"a":2}`)))
			Expect(err).To(BeNil())

			Eventually(w.Len).WithTimeout(2 * time.Second).Should(Equal(2))

			msgs := w.Events()
			Expect(msgs[0].Type()).To(Equal(DocumentMessageKind))
			Expect(msgs[0].Subject()).To(Equal("doc-1"))
			Expect(msgs[0].Source()).To(Equal(defaultSource))
			Expect(msgs[1].Type()).To(Equal(AccountMessageKind))
			Expect(w.Topics()).To(ConsistOf("activity", "activity"))
		})

		It("keeps writing after a writer error", func() {
			w := newTestWriter()
			w.fail = true
			kp := NewEventProducer(w)
			defer kp.Close()

			Expect(kp.Write(context.TODO(), DocumentMessageKind, "", bytes.NewReader([]byte("{}")))).To(Succeed())
			Eventually(w.Attempts).WithTimeout(2 * time.Second).Should(Equal(1))

			w.setFail(false)
			Expect(kp.Write(context.TODO(), DocumentMessageKind, "", bytes.NewReader([]byte("{}")))).To(Succeed())
			Eventually(w.Len).WithTimeout(2 * time.Second).Should(Equal(1))
		})

		It("flushes pending events on close", func() {
			w := newTestWriter()
			kp := NewEventProducer(w)

			for i := 0; i < 10; i++ {
				Expect(kp.Write(context.TODO(), PaymentMessageKind, "", bytes.NewReader([]byte("{}")))).To(Succeed())
			}
			Expect(kp.Close()).To(Succeed())
			Expect(w.Len()).To(Equal(10))
			Expect(w.closed).To(BeTrue())
		})
	})

	Context("publish", func() {
		It("publishes an activity event with the resource kind", func() {
			w := newTestWriter()
			kp := NewEventProducer(w)
			defer kp.Close()

			err := kp.Publish(context.TODO(), ActivityEvent{
				ActorID:    "admin",
				Action:     "verify_payment",
				Resource:   "payment_proof",
				ResourceID: "p-1",
				FromStatus: "PENDING",
				ToStatus:   "VERIFIED",
				Timestamp:  time.Now(),
			})
			Expect(err).To(BeNil())

			Eventually(w.Len).WithTimeout(2 * time.Second).Should(Equal(1))
			e := w.Events()[0]
			Expect(e.Type()).To(Equal(PaymentMessageKind))
			Expect(e.Subject()).To(Equal("p-1"))

			var got ActivityEvent
			Expect(json.Unmarshal(e.Data(), &got)).To(Succeed())
			Expect(got.ToStatus).To(Equal("VERIFIED"))
		})
	})

	Context("http writer", func() {
		It("delivers the event to the sink", func() {
			received := make(chan *http.Request, 1)
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				received <- r
				w.WriteHeader(http.StatusAccepted)
			}))
			defer ts.Close()

			writer, err := NewHTTPWriter(ts.URL)
			Expect(err).To(BeNil())

			e := cloudevents.NewEvent()
			e.SetID("evt-1")
			e.SetSource(defaultSource)
			e.SetType(DocumentMessageKind)
			Expect(e.SetData(cloudevents.ApplicationJSON, map[string]string{"a": "b"})).To(Succeed())

			Expect(writer.Write(context.TODO(), "activity", e)).To(Succeed())

			var r *http.Request
			Eventually(received).Should(Receive(&r))
			Expect(r.Header.Get("Ce-Id")).To(Equal("evt-1"))
			Expect(r.Header.Get("Ce-Type")).To(Equal(DocumentMessageKind))
			Expect(r.Header.Get("Ce-Topic")).To(Equal("activity"))
		})

		It("fails when the sink rejects the event", func() {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer ts.Close()

			writer, err := NewHTTPWriter(ts.URL)
			Expect(err).To(BeNil())

			e := cloudevents.NewEvent()
			e.SetID("evt-2")
			e.SetSource(defaultSource)
			e.SetType(DocumentMessageKind)

			Expect(writer.Write(context.TODO(), "activity", e)).ToNot(Succeed())
		})

		It("falls back to the log writer without a sink", func() {
			w, err := NewWriter("")
			Expect(err).To(BeNil())
			Expect(w).To(BeAssignableToTypeOf(&LogWriter{}))
		})
	})
})

type testwriter struct {
	lock     sync.Mutex
	messages []cloudevents.Event
	topics   []string
	attempts int
	fail     bool
	closed   bool
}

func newTestWriter() *testwriter {
	return &testwriter{}
}

func (t *testwriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.attempts++
	if t.fail {
		return errors.New("sink down")
	}
	t.messages = append(t.messages, e)
	t.topics = append(t.topics, topic)
	return nil
}

func (t *testwriter) Close(_ context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.closed = true
	return nil
}

func (t *testwriter) setFail(v bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.fail = v
}

func (t *testwriter) Len() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.messages)
}

func (t *testwriter) Attempts() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.attempts
}

func (t *testwriter) Events() []cloudevents.Event {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]cloudevents.Event{}, t.messages...)
}

func (t *testwriter) Topics() []string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]string{}, t.topics...)
}
